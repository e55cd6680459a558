package singlepool

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/base58"
	"go.firedancer.io/singlepool/pkg/sealevel"
	pda "go.firedancer.io/singlepool/pkg/solana"
)

const DefaultProgramIDStr = "SVSPxpvHdN29nkVg9rPapPNDddN5DipNLRUFhyjFThE"

// DefaultProgramID is the address the single pool program is deployed at.
var DefaultProgramID = solana.PublicKey(base58.MustDecodeFromString(DefaultProgramIDStr))

const (
	PoolStakePrefix     = "stake"
	PoolAuthorityPrefix = "authority"
	PoolMintPrefix      = "mint"
)

// MintDecimals matches the nine decimal places of a lamport.
const MintDecimals = 9

func poolSeeds(prefix string, voteAccount solana.PublicKey) [][]byte {
	return [][]byte{[]byte(prefix), voteAccount[:]}
}

func findPoolAddress(programID solana.PublicKey, prefix string, voteAccount solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := pda.FindProgramAddressBytes(poolSeeds(prefix, voteAccount), programID[:])
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("deriving pool %s address for vote account %s: %w", prefix, voteAccount, err)
	}
	return solana.PublicKeyFromBytes(addr), bump, nil
}

// FindPoolStakeAddress derives the stake account of the pool for voteAccount.
func FindPoolStakeAddress(programID solana.PublicKey, voteAccount solana.PublicKey) (solana.PublicKey, uint8, error) {
	return findPoolAddress(programID, PoolStakePrefix, voteAccount)
}

// FindPoolAuthorityAddress derives the address that signs for the pool's
// stake account and mint.
func FindPoolAuthorityAddress(programID solana.PublicKey, voteAccount solana.PublicKey) (solana.PublicKey, uint8, error) {
	return findPoolAddress(programID, PoolAuthorityPrefix, voteAccount)
}

// FindPoolMintAddress derives the mint of the pool's tokens.
func FindPoolMintAddress(programID solana.PublicKey, voteAccount solana.PublicKey) (solana.PublicKey, uint8, error) {
	return findPoolAddress(programID, PoolMintPrefix, voteAccount)
}

// FindPoolMetadataAddress derives the token metadata account of a pool mint.
func FindPoolMetadataAddress(poolMint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := sealevel.FindMetadataAddress(poolMint)
	return addr, err
}

// PoolAddresses holds every derived address of one pool.
type PoolAddresses struct {
	VoteAccount solana.PublicKey
	Stake       solana.PublicKey
	Authority   solana.PublicKey
	Mint        solana.PublicKey
	Metadata    solana.PublicKey
}

func FindPoolAddresses(programID solana.PublicKey, voteAccount solana.PublicKey) (*PoolAddresses, error) {
	stake, _, err := FindPoolStakeAddress(programID, voteAccount)
	if err != nil {
		return nil, err
	}
	authority, _, err := FindPoolAuthorityAddress(programID, voteAccount)
	if err != nil {
		return nil, err
	}
	mint, _, err := FindPoolMintAddress(programID, voteAccount)
	if err != nil {
		return nil, err
	}
	metadata, err := FindPoolMetadataAddress(mint)
	if err != nil {
		return nil, err
	}

	return &PoolAddresses{
		VoteAccount: voteAccount,
		Stake:       stake,
		Authority:   authority,
		Mint:        mint,
		Metadata:    metadata,
	}, nil
}
