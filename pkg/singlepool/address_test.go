package singlepool

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pda "go.firedancer.io/singlepool/pkg/solana"
)

func TestFindPoolAddresses_Deterministic(t *testing.T) {
	vote := solana.NewWallet().PublicKey()

	for _, find := range []func(solana.PublicKey, solana.PublicKey) (solana.PublicKey, uint8, error){
		FindPoolStakeAddress,
		FindPoolAuthorityAddress,
		FindPoolMintAddress,
	} {
		addr1, bump1, err := find(DefaultProgramID, vote)
		require.NoError(t, err)
		addr2, bump2, err := find(DefaultProgramID, vote)
		require.NoError(t, err)

		assert.Equal(t, addr1, addr2)
		assert.Equal(t, bump1, bump2)
		assert.False(t, pda.IsOnCurve(addr1[:]))
	}
}

func TestFindPoolAddresses_Injective(t *testing.T) {
	seen := make(map[solana.PublicKey]struct{})
	for i := 0; i < 16; i++ {
		addrs, err := FindPoolAddresses(DefaultProgramID, solana.NewWallet().PublicKey())
		require.NoError(t, err)

		for _, addr := range []solana.PublicKey{addrs.Stake, addrs.Authority, addrs.Mint, addrs.Metadata} {
			_, dup := seen[addr]
			require.False(t, dup, "address %s derived twice", addr)
			seen[addr] = struct{}{}
		}
	}
}

func TestFindPoolAddresses_ProgramScoped(t *testing.T) {
	vote := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()

	a, _, err := FindPoolStakeAddress(DefaultProgramID, vote)
	require.NoError(t, err)
	b, _, err := FindPoolStakeAddress(other, vote)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFindPoolStakeAddress_MatchesSeeds(t *testing.T) {
	vote := solana.NewWallet().PublicKey()
	addr, bump, err := FindPoolStakeAddress(DefaultProgramID, vote)
	require.NoError(t, err)

	signer := newPoolSigner(PoolStakePrefix, vote, addr, bump)
	created, err := pda.CreateProgramAddressBytes(signer.seeds, DefaultProgramID[:])
	require.NoError(t, err)
	assert.Equal(t, addr, solana.PublicKeyFromBytes(created))
}

func TestCustomErrorCode_RoundTrip(t *testing.T) {
	for i, poolErr := range customErrorCodes {
		code, ok := CustomErrorCode(poolErr)
		require.True(t, ok)
		assert.Equal(t, uint32(i), code)
		assert.Equal(t, poolErr, ErrorFromCode(code))
	}

	code, ok := CustomErrorCode(SinglePoolErrInvalidPoolAccountUsage)
	assert.True(t, ok)
	assert.Equal(t, uint32(16), code)

	assert.Nil(t, ErrorFromCode(17))
}
