package sealevel

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/singlepool/pkg/accounts"
	"go.firedancer.io/singlepool/pkg/features"
	"golang.org/x/sync/errgroup"
)

func newTestBank(t *testing.T) *Bank {
	bank, err := NewBank(accounts.NewMemAccounts(), features.NewFeaturesDefault(), DefaultRent())
	require.NoError(t, err)
	return bank
}

func newFundedKey(t *testing.T, bank *Bank, lamports uint64) solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	require.NoError(t, bank.Airdrop(key, lamports))
	return key
}

func getLamports(t *testing.T, bank *Bank, key solana.PublicKey) uint64 {
	acct, err := bank.GetAccount(key)
	require.NoError(t, err)
	if acct == nil {
		return 0
	}
	return acct.Lamports
}

func TestExecute_Tx_System_Program_Transfer_Success(t *testing.T) {
	bank := newTestBank(t)
	from := newFundedKey(t, bank, 1_000_000)
	to := solana.NewWallet().PublicKey()

	_, err := bank.ProcessInstruction(NewTransferInstruction(from, to, 400_000), from)
	assert.NoError(t, err)

	assert.Equal(t, uint64(600_000), getLamports(t, bank, from))
	assert.Equal(t, uint64(400_000), getLamports(t, bank, to))

	acct, err := bank.GetAccount(to)
	require.NoError(t, err)
	assert.Equal(t, SystemProgramAddr, acct.Owner)
}

func TestExecute_Tx_System_Program_Transfer_InsufficientFunds(t *testing.T) {
	bank := newTestBank(t)
	from := newFundedKey(t, bank, 1000)
	to := solana.NewWallet().PublicKey()

	_, err := bank.ProcessInstruction(NewTransferInstruction(from, to, 1001), from)
	assert.ErrorIs(t, err, SystemProgErrResultWithNegativeLamports)
	assert.Equal(t, uint64(1000), getLamports(t, bank, from))
}

func TestExecute_Tx_System_Program_CreateAccount_Success(t *testing.T) {
	bank := newTestBank(t)
	rent := bank.Rent()
	payer := newFundedKey(t, bank, 10_000_000)
	newAcct := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	lamports := rent.MinimumBalance(100)
	_, err := bank.ProcessInstruction(NewCreateAccountInstruction(payer, newAcct, lamports, 100, owner), payer, newAcct)
	assert.NoError(t, err)

	acct, err := bank.GetAccount(newAcct)
	require.NoError(t, err)
	assert.Equal(t, lamports, acct.Lamports)
	assert.Equal(t, owner, acct.Owner)
	assert.Equal(t, make([]byte, 100), acct.Data)
	assert.Equal(t, 10_000_000-lamports, getLamports(t, bank, payer))
}

func TestExecute_Tx_System_Program_CreateAccount_AlreadyInUse(t *testing.T) {
	bank := newTestBank(t)
	payer := newFundedKey(t, bank, 10_000_000)
	existing := newFundedKey(t, bank, 1)

	_, err := bank.ProcessInstruction(NewCreateAccountInstruction(payer, existing, 1_000_000, 0, StakeProgramAddr), payer, existing)
	assert.ErrorIs(t, err, SystemProgErrAccountAlreadyInUse)
}

func TestExecute_Tx_System_Program_Allocate_MissingSigner(t *testing.T) {
	bank := newTestBank(t)
	payer := newFundedKey(t, bank, 10_000_000)
	target := newFundedKey(t, bank, 1_000_000)

	ix := NewAllocateInstruction(target, 10)
	ix.Accounts[0].IsSigner = false
	_, err := bank.ProcessInstruction(ix, payer)
	assert.ErrorIs(t, err, InstrErrMissingRequiredSignature)
}

func TestBank_MissingTransactionSignature(t *testing.T) {
	bank := newTestBank(t)
	from := newFundedKey(t, bank, 1000)

	_, err := bank.ProcessInstruction(NewTransferInstruction(from, solana.NewWallet().PublicKey(), 1))
	assert.ErrorIs(t, err, ErrMissingTransactionSignature)
	assert.Equal(t, uint64(1000), getLamports(t, bank, from))
}

func TestBank_EmptyTransaction(t *testing.T) {
	bank := newTestBank(t)
	_, err := bank.ProcessTransaction(nil)
	assert.ErrorIs(t, err, ErrEmptyTransaction)
}

func TestBank_FailedInstructionRollsBack(t *testing.T) {
	bank := newTestBank(t)
	from := newFundedKey(t, bank, 1000)
	to := solana.NewWallet().PublicKey()

	instrs := []Instruction{
		NewTransferInstruction(from, to, 500),
		NewTransferInstruction(from, to, 600),
	}
	_, err := bank.ProcessTransaction(instrs, from)

	var instrErr *InstructionError
	require.ErrorAs(t, err, &instrErr)
	assert.Equal(t, 1, instrErr.Index)
	assert.ErrorIs(t, err, SystemProgErrResultWithNegativeLamports)

	assert.Equal(t, uint64(1000), getLamports(t, bank, from))
	assert.Zero(t, getLamports(t, bank, to))
}

func TestBank_CommitHooks(t *testing.T) {
	bank := newTestBank(t)
	from := newFundedKey(t, bank, 1000)
	to := solana.NewWallet().PublicKey()

	var committed []byte
	programID := solana.NewWallet().PublicKey()
	require.NoError(t, bank.AddProgram(programID, NativeLoaderAddr, func(execCtx *ExecutionCtx) error {
		instrCtx, err := execCtx.CurrentInstructionCtx()
		if err != nil {
			return err
		}
		tag := instrCtx.Data[0]
		execCtx.OnCommit(func() {
			committed = append(committed, tag)
		})
		return nil
	}))
	hook := func(tag byte) Instruction {
		return Instruction{ProgramId: programID, Data: []byte{tag}}
	}

	_, err := bank.ProcessTransaction([]Instruction{hook(1), NewTransferInstruction(from, to, 100), hook(2)}, from)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, committed)

	_, err = bank.ProcessTransaction([]Instruction{hook(3), NewTransferInstruction(from, to, 1000)}, from)
	assert.ErrorIs(t, err, SystemProgErrResultWithNegativeLamports)
	assert.Equal(t, []byte{1, 2}, committed)
	assert.Equal(t, uint64(900), getLamports(t, bank, from))
}

func TestBank_ConcurrentTransactions(t *testing.T) {
	const numSenders = 32

	bank := newTestBank(t)
	dest := solana.NewWallet().PublicKey()
	senders := make([]solana.PublicKey, numSenders)
	for i := range senders {
		senders[i] = newFundedKey(t, bank, 100)
	}

	var group errgroup.Group
	for _, sender := range senders {
		sender := sender
		group.Go(func() error {
			_, err := bank.ProcessInstruction(NewTransferInstruction(sender, dest, 10), sender)
			return err
		})
	}
	require.NoError(t, group.Wait())

	assert.Equal(t, uint64(numSenders*10), getLamports(t, bank, dest))
	for _, sender := range senders {
		assert.Equal(t, uint64(90), getLamports(t, bank, sender))
	}
}

func TestBank_WarpToEpoch(t *testing.T) {
	bank := newTestBank(t)
	start := bank.Clock()
	assert.Zero(t, start.Epoch)

	require.NoError(t, bank.WarpToEpoch(3))
	clock := bank.Clock()
	assert.Equal(t, uint64(3), clock.Epoch)
	assert.Equal(t, uint64(3*DefaultSlotsPerEpoch), clock.Slot)
	assert.Equal(t, uint64(4), clock.LeaderScheduleEpoch)
	assert.Greater(t, clock.UnixTimestamp, start.UnixTimestamp)

	acct, err := bank.GetAccount(SysvarClockAddr)
	require.NoError(t, err)
	assert.Equal(t, clock.Marshal(), acct.Data)

	assert.ErrorIs(t, bank.WarpToEpoch(2), ErrEpochInPast)
}

func TestBank_KeysSorted(t *testing.T) {
	bank := newTestBank(t)
	for i := 0; i < 10; i++ {
		newFundedKey(t, bank, 1)
	}

	keys := bank.Keys()
	for i := 1; i < len(keys); i++ {
		assert.Negative(t, compareKeys(keys[i-1], keys[i]))
	}
	assert.Contains(t, keys, SystemProgramAddr)
	assert.Contains(t, keys, SysvarRentAddr)
}

func compareKeys(a, b solana.PublicKey) int {
	for i := range a {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return 0
}

func TestBank_GetAccountReturnsCopy(t *testing.T) {
	bank := newTestBank(t)
	key := newFundedKey(t, bank, 5)

	acct, err := bank.GetAccount(key)
	require.NoError(t, err)
	acct.Lamports = 1_000_000

	assert.Equal(t, uint64(5), getLamports(t, bank, key))
}
