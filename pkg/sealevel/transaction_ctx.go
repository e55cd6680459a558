package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/accounts"
)

// MaxReturnDataLen is the largest payload a program may set as return data.
const MaxReturnDataLen = 1024

type TxReturnData struct {
	programId solana.PublicKey
	data      []byte
}

// TransactionCtx holds the accounts a transaction operates on and the stack of
// instructions currently executing.
type TransactionCtx struct {
	accounts         map[solana.PublicKey]*accounts.Account
	instructionStack []*InstructionCtx
	returnData       TxReturnData
}

func NewTransactionCtx(accts map[solana.PublicKey]*accounts.Account) *TransactionCtx {
	return &TransactionCtx{accounts: accts}
}

func (txCtx *TransactionCtx) Account(pubkey solana.PublicKey) (*accounts.Account, bool) {
	acct, ok := txCtx.accounts[pubkey]
	return acct, ok
}

func (txCtx *TransactionCtx) NewInstructionCtx(programId solana.PublicKey, instrAccts []InstructionAccount, data []byte) *InstructionCtx {
	return &InstructionCtx{programId: programId, InstructionAccounts: instrAccts, Data: data, txCtx: txCtx}
}

func (txCtx *TransactionCtx) PushInstructionCtx(ixCtx *InstructionCtx) {
	txCtx.instructionStack = append(txCtx.instructionStack, ixCtx)
}

func (txCtx *TransactionCtx) PopInstructionCtx() error {
	if len(txCtx.instructionStack) == 0 {
		return InstrErrCallDepth
	}
	txCtx.instructionStack = txCtx.instructionStack[:len(txCtx.instructionStack)-1]
	return nil
}

func (txCtx *TransactionCtx) InstructionCtxStackHeight() uint64 {
	return uint64(len(txCtx.instructionStack))
}

func (txCtx *TransactionCtx) InstructionCtxAtNestingLevel(level uint64) (*InstructionCtx, error) {
	if level >= txCtx.InstructionCtxStackHeight() {
		return nil, InstrErrCallDepth
	}
	return txCtx.instructionStack[level], nil
}

func (txCtx *TransactionCtx) CurrentInstructionCtx() (*InstructionCtx, error) {
	if len(txCtx.instructionStack) == 0 {
		return nil, InstrErrCallDepth
	}
	return txCtx.instructionStack[len(txCtx.instructionStack)-1], nil
}

func (txCtx *TransactionCtx) GetReturnData() (solana.PublicKey, []byte) {
	return txCtx.returnData.programId, txCtx.returnData.data
}

func (txCtx *TransactionCtx) SetReturnData(programId solana.PublicKey, data []byte) error {
	if len(data) > MaxReturnDataLen {
		return InstrErrInvalidInstructionData
	}
	txCtx.returnData = TxReturnData{programId: programId, data: append([]byte(nil), data...)}
	return nil
}
