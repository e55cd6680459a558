package singlepool

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/sealevel"
)

func tokenInitializeMint(execCtx *sealevel.ExecutionCtx, mint solana.PublicKey, authority poolSigner) error {
	return authority.invoke(execCtx, sealevel.NewTokenInitializeMint2Instruction(mint, authority.address, MintDecimals))
}

func tokenMintTo(execCtx *sealevel.ExecutionCtx, mint solana.PublicKey, destination solana.PublicKey, amount uint64, authority poolSigner) error {
	return authority.invoke(execCtx, sealevel.NewTokenMintToInstruction(mint, destination, authority.address, amount))
}

// tokenBurn burns from an account that has approved the pool authority as
// its delegate.
func tokenBurn(execCtx *sealevel.ExecutionCtx, account solana.PublicKey, mint solana.PublicKey, amount uint64, authority poolSigner) error {
	return authority.invoke(execCtx, sealevel.NewTokenBurnInstruction(account, mint, authority.address, amount))
}

// allocateAndAssign sizes a system account owned by nobody yet and hands it to
// owner, signing as the account itself.
func allocateAndAssign(execCtx *sealevel.ExecutionCtx, acct poolSigner, space uint64, owner solana.PublicKey) error {
	err := acct.invoke(execCtx, sealevel.NewAllocateInstruction(acct.address, space))
	if err != nil {
		return err
	}
	return acct.invoke(execCtx, sealevel.NewAssignInstruction(acct.address, owner))
}
