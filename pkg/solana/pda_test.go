package solana

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProgramID() []byte {
	id := make([]byte, PublicKeyLength)
	for i := range id {
		id[i] = byte(i + 1)
	}
	return id
}

func TestFindProgramAddress_Deterministic(t *testing.T) {
	seeds := [][]byte{[]byte("stake"), bytes.Repeat([]byte{7}, 32)}

	addr1, bump1, err := FindProgramAddressBytes(seeds, testProgramID())
	require.NoError(t, err)
	addr2, bump2, err := FindProgramAddressBytes(seeds, testProgramID())
	require.NoError(t, err)

	assert.Equal(t, addr1, addr2)
	assert.Equal(t, bump1, bump2)
	assert.False(t, IsOnCurve(addr1))

	recreated, err := CreateProgramAddressBytes(append(seeds, []byte{bump1}), testProgramID())
	require.NoError(t, err)
	assert.Equal(t, addr1, recreated)
}

func TestFindProgramAddress_CallerSeedsUntouched(t *testing.T) {
	seeds := make([][]byte, 1, 4)
	seeds[0] = []byte("mint")
	_, _, err := FindProgramAddressBytes(seeds, testProgramID())
	require.NoError(t, err)
	assert.Len(t, seeds, 1)
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	_, err := CreateProgramAddressBytes([][]byte{make([]byte, MaxSeedLen+1)}, testProgramID())
	assert.ErrorIs(t, err, ErrSeedLength)

	tooMany := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddressBytes(tooMany, testProgramID())
	assert.ErrorIs(t, err, ErrSeedLength)

	_, err = CreateProgramAddressBytes(nil, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrAddressLength)
}
