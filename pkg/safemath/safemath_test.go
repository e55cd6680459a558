package safemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaturating(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAddU64(math.MaxUint64, 1))
	assert.Equal(t, uint64(3), SaturatingAddU64(1, 2))
	assert.Equal(t, uint64(0), SaturatingSubU64(1, 2))
	assert.Equal(t, uint64(1), SaturatingSubU64(3, 2))
}

func TestChecked(t *testing.T) {
	_, err := CheckedAddU64(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = CheckedSubU64(1, 2)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = CheckedMulU64(math.MaxUint64, 2)
	assert.ErrorIs(t, err, ErrOverflow)

	v, err := CheckedMulU64(1_000_000_000, 7)
	assert.NoError(t, err)
	assert.Equal(t, uint64(7_000_000_000), v)
}
