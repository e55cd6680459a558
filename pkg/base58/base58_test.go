package base58

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFromString_SystemProgram(t *testing.T) {
	addr, err := DecodeFromString("11111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, [32]byte{}, addr)
	assert.Equal(t, "11111111111111111111111111111111", Encode(addr[:]))
}

func TestDecodeFromString_RoundTrip(t *testing.T) {
	const stakeProgram = "Stake11111111111111111111111111111111111111"
	addr := MustDecodeFromString(stakeProgram)
	assert.Equal(t, stakeProgram, Encode(addr[:]))
}

func TestDecodeFromString_WrongLength(t *testing.T) {
	_, err := DecodeFromString("abc")
	assert.Error(t, err)

	defer func() { _ = recover() }()
	MustDecodeFromString("abc")
	t.Errorf("MustDecodeFromString should have panicked")
}
