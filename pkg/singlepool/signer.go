package singlepool

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/sealevel"
)

// poolSigner is a pool address the program signs for, carried together with
// the seeds that derive it. Every downstream call that needs the address to
// sign is handed the signer explicitly.
type poolSigner struct {
	address solana.PublicKey
	seeds   [][]byte
}

func newPoolSigner(prefix string, voteAccount solana.PublicKey, address solana.PublicKey, bump uint8) poolSigner {
	return poolSigner{
		address: address,
		seeds:   append(poolSeeds(prefix, voteAccount), []byte{bump}),
	}
}

func (s poolSigner) invoke(execCtx *sealevel.ExecutionCtx, ix sealevel.Instruction) error {
	return execCtx.InvokeSigned(ix, [][][]byte{s.seeds})
}
