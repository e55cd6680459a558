package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
)

type InstructionCtx struct {
	programId           solana.PublicKey
	InstructionAccounts []InstructionAccount
	Data                []byte
	txCtx               *TransactionCtx
}

func (instrCtx *InstructionCtx) ProgramId() solana.PublicKey {
	return instrCtx.programId
}

func (instrCtx *InstructionCtx) NumberOfInstructionAccounts() uint64 {
	return uint64(len(instrCtx.InstructionAccounts))
}

func (instrCtx *InstructionCtx) CheckNumOfInstructionAccounts(expected uint64) error {
	if instrCtx.NumberOfInstructionAccounts() < expected {
		return InstrErrNotEnoughAccountKeys
	}
	return nil
}

func (instrCtx *InstructionCtx) KeyOfAccountAtIndex(instrAcctIdx uint64) (solana.PublicKey, error) {
	if instrAcctIdx >= instrCtx.NumberOfInstructionAccounts() {
		return solana.PublicKey{}, InstrErrNotEnoughAccountKeys
	}
	return instrCtx.InstructionAccounts[instrAcctIdx].Pubkey, nil
}

func (instrCtx *InstructionCtx) IsInstructionAccountSigner(instrAcctIdx uint64) (bool, error) {
	if instrAcctIdx >= instrCtx.NumberOfInstructionAccounts() {
		return false, InstrErrMissingAccount
	}
	return instrCtx.InstructionAccounts[instrAcctIdx].IsSigner, nil
}

func (instrCtx *InstructionCtx) IsInstructionAccountWritable(instrAcctIdx uint64) (bool, error) {
	if instrAcctIdx >= instrCtx.NumberOfInstructionAccounts() {
		return false, InstrErrMissingAccount
	}
	return instrCtx.InstructionAccounts[instrAcctIdx].IsWritable, nil
}

// IndexOfInstructionAccount returns the position of the first instruction
// account with the given address.
func (instrCtx *InstructionCtx) IndexOfInstructionAccount(pubkey solana.PublicKey) (uint64, error) {
	for idx, instrAcct := range instrCtx.InstructionAccounts {
		if instrAcct.Pubkey == pubkey {
			return uint64(idx), nil
		}
	}
	return 0, InstrErrMissingAccount
}

func (instrCtx *InstructionCtx) BorrowInstructionAccount(instrAcctIdx uint64) (*BorrowedAccount, error) {
	if instrAcctIdx >= instrCtx.NumberOfInstructionAccounts() {
		return nil, InstrErrNotEnoughAccountKeys
	}

	acct, ok := instrCtx.txCtx.Account(instrCtx.InstructionAccounts[instrAcctIdx].Pubkey)
	if !ok {
		return nil, InstrErrMissingAccount
	}

	return &BorrowedAccount{InstrCtx: instrCtx, IndexInInstruction: instrAcctIdx, Account: acct}, nil
}

// Signers lists the distinct addresses that signed this invocation, either
// directly or through program-derived signing by the caller.
func (instrCtx *InstructionCtx) Signers() []solana.PublicKey {
	signers := lo.FilterMap(instrCtx.InstructionAccounts, func(instrAcct InstructionAccount, _ int) (solana.PublicKey, bool) {
		return instrAcct.Pubkey, instrAcct.IsSigner
	})
	return lo.Uniq(signers)
}
