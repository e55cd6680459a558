package sealevel

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenTestEnv struct {
	bank      *Bank
	payer     solana.PublicKey
	mint      solana.PublicKey
	authority solana.PublicKey
}

func newTokenTestEnv(t *testing.T) *tokenTestEnv {
	bank := newTestBank(t)
	env := &tokenTestEnv{
		bank:      bank,
		payer:     newFundedKey(t, bank, 10*LamportsPerSol),
		mint:      solana.NewWallet().PublicKey(),
		authority: solana.NewWallet().PublicKey(),
	}

	rent := bank.Rent()
	instrs := []Instruction{
		NewCreateAccountInstruction(env.payer, env.mint, rent.MinimumBalance(TokenMintSize), TokenMintSize, TokenProgramAddr),
		NewTokenInitializeMint2Instruction(env.mint, env.authority, 6),
	}
	_, err := bank.ProcessTransaction(instrs, env.payer, env.mint)
	require.NoError(t, err)
	return env
}

func (env *tokenTestEnv) newTokenAccount(t *testing.T, owner solana.PublicKey) solana.PublicKey {
	tokenAcct := solana.NewWallet().PublicKey()
	rent := env.bank.Rent()
	instrs := []Instruction{
		NewCreateAccountInstruction(env.payer, tokenAcct, rent.MinimumBalance(TokenAccountSize), TokenAccountSize, TokenProgramAddr),
		NewTokenInitializeAccountInstruction(tokenAcct, env.mint, owner),
	}
	_, err := env.bank.ProcessTransaction(instrs, env.payer, tokenAcct)
	require.NoError(t, err)
	return tokenAcct
}

func (env *tokenTestEnv) tokenAccount(t *testing.T, key solana.PublicKey) *TokenAccount {
	acct, err := env.bank.GetAccount(key)
	require.NoError(t, err)
	tokenAcct, err := UnmarshalTokenAccount(acct.Data)
	require.NoError(t, err)
	return tokenAcct
}

func (env *tokenTestEnv) supply(t *testing.T) uint64 {
	acct, err := env.bank.GetAccount(env.mint)
	require.NoError(t, err)
	mint, err := UnmarshalTokenMint(acct.Data)
	require.NoError(t, err)
	return mint.Supply
}

func TestExecute_Tx_Token_Program_InitializeMint(t *testing.T) {
	env := newTokenTestEnv(t)

	acct, err := env.bank.GetAccount(env.mint)
	require.NoError(t, err)
	mint, err := UnmarshalTokenMint(acct.Data)
	require.NoError(t, err)
	assert.True(t, mint.IsInitialized)
	assert.Equal(t, byte(6), mint.Decimals)
	assert.Equal(t, SomePubkey(env.authority), mint.MintAuthority)
	assert.False(t, mint.FreezeAuthority.Present)

	_, err = env.bank.ProcessInstruction(NewTokenInitializeMint2Instruction(env.mint, env.authority, 6))
	assert.ErrorIs(t, err, TokenErrAlreadyInUse)
}

func TestExecute_Tx_Token_Program_InitializeMint_NotRentExempt(t *testing.T) {
	bank := newTestBank(t)
	payer := newFundedKey(t, bank, LamportsPerSol)
	mint := solana.NewWallet().PublicKey()

	instrs := []Instruction{
		NewCreateAccountInstruction(payer, mint, 1, TokenMintSize, TokenProgramAddr),
		NewTokenInitializeMint2Instruction(mint, payer, 9),
	}
	_, err := bank.ProcessTransaction(instrs, payer, mint)
	assert.ErrorIs(t, err, TokenErrNotRentExempt)
}

func TestExecute_Tx_Token_Program_MintTo(t *testing.T) {
	env := newTokenTestEnv(t)
	owner := solana.NewWallet().PublicKey()
	dest := env.newTokenAccount(t, owner)

	_, err := env.bank.ProcessInstruction(NewTokenMintToInstruction(env.mint, dest, env.authority, 500), env.authority)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), env.tokenAccount(t, dest).Amount)
	assert.Equal(t, uint64(500), env.supply(t))

	_, err = env.bank.ProcessInstruction(NewTokenMintToInstruction(env.mint, dest, owner, 1), owner)
	assert.ErrorIs(t, err, TokenErrOwnerMismatch)

	ix := NewTokenMintToInstruction(env.mint, dest, env.authority, 1)
	ix.Accounts[2].IsSigner = false
	_, err = env.bank.ProcessInstruction(ix)
	assert.ErrorIs(t, err, InstrErrMissingRequiredSignature)
}

func TestExecute_Tx_Token_Program_Transfer(t *testing.T) {
	env := newTokenTestEnv(t)
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	aliceAcct := env.newTokenAccount(t, alice)
	bobAcct := env.newTokenAccount(t, bob)

	_, err := env.bank.ProcessInstruction(NewTokenMintToInstruction(env.mint, aliceAcct, env.authority, 100), env.authority)
	require.NoError(t, err)

	_, err = env.bank.ProcessInstruction(NewTokenTransferInstruction(aliceAcct, bobAcct, alice, 30), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(70), env.tokenAccount(t, aliceAcct).Amount)
	assert.Equal(t, uint64(30), env.tokenAccount(t, bobAcct).Amount)

	_, err = env.bank.ProcessInstruction(NewTokenTransferInstruction(aliceAcct, bobAcct, alice, 71), alice)
	assert.ErrorIs(t, err, TokenErrInsufficientFunds)

	_, err = env.bank.ProcessInstruction(NewTokenTransferInstruction(aliceAcct, bobAcct, bob, 1), bob)
	assert.ErrorIs(t, err, TokenErrOwnerMismatch)

	// self-transfer validates but does not change the balance
	_, err = env.bank.ProcessInstruction(NewTokenTransferInstruction(aliceAcct, aliceAcct, alice, 70), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(70), env.tokenAccount(t, aliceAcct).Amount)
	assert.Equal(t, uint64(100), env.supply(t))
}

func TestExecute_Tx_Token_Program_ApproveAndBurn(t *testing.T) {
	env := newTokenTestEnv(t)
	owner := solana.NewWallet().PublicKey()
	delegate := solana.NewWallet().PublicKey()
	tokenAcct := env.newTokenAccount(t, owner)

	_, err := env.bank.ProcessInstruction(NewTokenMintToInstruction(env.mint, tokenAcct, env.authority, 100), env.authority)
	require.NoError(t, err)

	// burning as a stranger fails before any approval
	_, err = env.bank.ProcessInstruction(NewTokenBurnInstruction(tokenAcct, env.mint, delegate, 10), delegate)
	assert.ErrorIs(t, err, TokenErrOwnerMismatch)

	_, err = env.bank.ProcessInstruction(NewTokenApproveInstruction(tokenAcct, delegate, owner, 40), owner)
	require.NoError(t, err)
	approved := env.tokenAccount(t, tokenAcct)
	assert.Equal(t, SomePubkey(delegate), approved.Delegate)
	assert.Equal(t, uint64(40), approved.DelegatedAmount)

	_, err = env.bank.ProcessInstruction(NewTokenBurnInstruction(tokenAcct, env.mint, delegate, 41), delegate)
	assert.ErrorIs(t, err, TokenErrInsufficientFunds)

	_, err = env.bank.ProcessInstruction(NewTokenBurnInstruction(tokenAcct, env.mint, delegate, 25), delegate)
	require.NoError(t, err)
	burned := env.tokenAccount(t, tokenAcct)
	assert.Equal(t, uint64(75), burned.Amount)
	assert.Equal(t, uint64(15), burned.DelegatedAmount)
	assert.Equal(t, uint64(75), env.supply(t))

	// spending the whole allowance clears the delegate
	_, err = env.bank.ProcessInstruction(NewTokenBurnInstruction(tokenAcct, env.mint, delegate, 15), delegate)
	require.NoError(t, err)
	assert.False(t, env.tokenAccount(t, tokenAcct).Delegate.Present)

	_, err = env.bank.ProcessInstruction(NewTokenBurnInstruction(tokenAcct, env.mint, owner, 61), owner)
	assert.ErrorIs(t, err, TokenErrInsufficientFunds)
}

func TestExecute_Tx_Token_Program_Revoke(t *testing.T) {
	env := newTokenTestEnv(t)
	owner := solana.NewWallet().PublicKey()
	delegate := solana.NewWallet().PublicKey()
	tokenAcct := env.newTokenAccount(t, owner)

	_, err := env.bank.ProcessInstruction(NewTokenApproveInstruction(tokenAcct, delegate, owner, 40), owner)
	require.NoError(t, err)
	_, err = env.bank.ProcessInstruction(NewTokenRevokeInstruction(tokenAcct, owner), owner)
	require.NoError(t, err)

	revoked := env.tokenAccount(t, tokenAcct)
	assert.False(t, revoked.Delegate.Present)
	assert.Zero(t, revoked.DelegatedAmount)
}

func TestExecute_Tx_Token_Program_WrongMint(t *testing.T) {
	env := newTokenTestEnv(t)
	other := newTokenTestEnv(t)

	owner := solana.NewWallet().PublicKey()
	tokenAcct := env.newTokenAccount(t, owner)

	// a mint that only exists in the other bank is a blank system account here
	_, err := env.bank.ProcessInstruction(NewTokenMintToInstruction(other.mint, tokenAcct, other.authority, 1), other.authority)
	assert.ErrorIs(t, err, TokenErrMintMismatch)
}
