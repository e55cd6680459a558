package cu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeMeter_Consume(t *testing.T) {
	cm := NewComputeMeter(1000)

	assert.NoError(t, cm.Consume(400))
	assert.Equal(t, uint64(400), cm.Used())
	assert.Equal(t, uint64(600), cm.Remaining())

	assert.NoError(t, cm.Consume(600))
	assert.Zero(t, cm.Remaining())
	assert.ErrorIs(t, cm.Consume(1), ErrComputeExceeded)
}

func TestComputeMeter_Exhausted(t *testing.T) {
	cm := NewComputeMeter(10)

	err := cm.Consume(20)
	assert.ErrorIs(t, err, ErrComputeExceeded)
	assert.EqualError(t, err, "Compute exceeded: needed 20 with 10 left")
	assert.Equal(t, uint64(10), cm.Used())
	assert.ErrorIs(t, cm.Consume(1), ErrComputeExceeded)
}
