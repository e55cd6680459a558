package sealevel

import (
	"encoding/binary"
	"errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/safemath"
	"k8s.io/klog/v2"
)

const (
	TokenInstrTypeInitializeMint  = 0
	TokenInstrTypeInitializeAcct  = 1
	TokenInstrTypeTransfer        = 3
	TokenInstrTypeApprove         = 4
	TokenInstrTypeRevoke          = 5
	TokenInstrTypeMintTo          = 7
	TokenInstrTypeBurn            = 8
	TokenInstrTypeInitializeMint2 = 20
)

// token program errors
var (
	TokenErrNotRentExempt      = errors.New("TokenErrNotRentExempt")
	TokenErrInsufficientFunds  = errors.New("TokenErrInsufficientFunds")
	TokenErrInvalidMint        = errors.New("TokenErrInvalidMint")
	TokenErrMintMismatch       = errors.New("TokenErrMintMismatch")
	TokenErrOwnerMismatch      = errors.New("TokenErrOwnerMismatch")
	TokenErrFixedSupply        = errors.New("TokenErrFixedSupply")
	TokenErrAlreadyInUse       = errors.New("TokenErrAlreadyInUse")
	TokenErrUninitializedState = errors.New("TokenErrUninitializedState")
	TokenErrOverflow           = errors.New("TokenErrOverflow")
	TokenErrAccountFrozen      = errors.New("TokenErrAccountFrozen")
	TokenErrInvalidInstruction = errors.New("TokenErrInvalidInstruction")
	TokenErrNativeNotSupported = errors.New("TokenErrNativeNotSupported")
)

type TokenInstrInitializeMint struct {
	Decimals        byte
	MintAuthority   solana.PublicKey
	FreezeAuthority COptionPubkey
}

func (instr *TokenInstrInitializeMint) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Decimals, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(instr.MintAuthority[:], pk)

	// the freeze authority is packed as a one-byte option
	hasFreeze, err := decoder.ReadByte()
	if err != nil {
		return err
	}
	switch hasFreeze {
	case 0:
		instr.FreezeAuthority = COptionPubkey{}
	case 1:
		pk, err = decoder.ReadBytes(solana.PublicKeyLength)
		if err != nil {
			return err
		}
		instr.FreezeAuthority = SomePubkey(solana.PublicKeyFromBytes(pk))
	default:
		return invalidEnumValue
	}
	return nil
}

func (instr *TokenInstrInitializeMint) marshal(instrType byte) []byte {
	data := []byte{instrType, instr.Decimals}
	data = append(data, instr.MintAuthority[:]...)
	if instr.FreezeAuthority.Present {
		data = append(data, 1)
		data = append(data, instr.FreezeAuthority.Pubkey[:]...)
	} else {
		data = append(data, 0)
	}
	return data
}

func tokenAmountInstrData(instrType byte, amount uint64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{instrType}, amount)
}

func NewTokenInitializeMintInstruction(mint solana.PublicKey, mintAuthority solana.PublicKey, decimals byte) Instruction {
	instr := TokenInstrInitializeMint{Decimals: decimals, MintAuthority: mintAuthority}
	return Instruction{
		Accounts:  []AccountMeta{WritableMeta(mint), ReadonlyMeta(SysvarRentAddr)},
		Data:      instr.marshal(TokenInstrTypeInitializeMint),
		ProgramId: TokenProgramAddr,
	}
}

func NewTokenInitializeMint2Instruction(mint solana.PublicKey, mintAuthority solana.PublicKey, decimals byte) Instruction {
	instr := TokenInstrInitializeMint{Decimals: decimals, MintAuthority: mintAuthority}
	return Instruction{
		Accounts:  []AccountMeta{WritableMeta(mint)},
		Data:      instr.marshal(TokenInstrTypeInitializeMint2),
		ProgramId: TokenProgramAddr,
	}
}

func NewTokenInitializeAccountInstruction(account solana.PublicKey, mint solana.PublicKey, owner solana.PublicKey) Instruction {
	return Instruction{
		Accounts: []AccountMeta{
			WritableMeta(account),
			ReadonlyMeta(mint),
			ReadonlyMeta(owner),
			ReadonlyMeta(SysvarRentAddr),
		},
		Data:      []byte{TokenInstrTypeInitializeAcct},
		ProgramId: TokenProgramAddr,
	}
}

func NewTokenTransferInstruction(source solana.PublicKey, destination solana.PublicKey, authority solana.PublicKey, amount uint64) Instruction {
	return Instruction{
		Accounts:  []AccountMeta{WritableMeta(source), WritableMeta(destination), ReadonlySignerMeta(authority)},
		Data:      tokenAmountInstrData(TokenInstrTypeTransfer, amount),
		ProgramId: TokenProgramAddr,
	}
}

func NewTokenApproveInstruction(source solana.PublicKey, delegate solana.PublicKey, owner solana.PublicKey, amount uint64) Instruction {
	return Instruction{
		Accounts:  []AccountMeta{WritableMeta(source), ReadonlyMeta(delegate), ReadonlySignerMeta(owner)},
		Data:      tokenAmountInstrData(TokenInstrTypeApprove, amount),
		ProgramId: TokenProgramAddr,
	}
}

func NewTokenRevokeInstruction(source solana.PublicKey, owner solana.PublicKey) Instruction {
	return Instruction{
		Accounts:  []AccountMeta{WritableMeta(source), ReadonlySignerMeta(owner)},
		Data:      []byte{TokenInstrTypeRevoke},
		ProgramId: TokenProgramAddr,
	}
}

func NewTokenMintToInstruction(mint solana.PublicKey, destination solana.PublicKey, mintAuthority solana.PublicKey, amount uint64) Instruction {
	return Instruction{
		Accounts:  []AccountMeta{WritableMeta(mint), WritableMeta(destination), ReadonlySignerMeta(mintAuthority)},
		Data:      tokenAmountInstrData(TokenInstrTypeMintTo, amount),
		ProgramId: TokenProgramAddr,
	}
}

func NewTokenBurnInstruction(account solana.PublicKey, mint solana.PublicKey, authority solana.PublicKey, amount uint64) Instruction {
	return Instruction{
		Accounts:  []AccountMeta{WritableMeta(account), WritableMeta(mint), ReadonlySignerMeta(authority)},
		Data:      tokenAmountInstrData(TokenInstrTypeBurn, amount),
		ProgramId: TokenProgramAddr,
	}
}

func TokenProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUTokenProgramDefaultComputeUnits)
	if err != nil {
		return InstrErrComputationalBudgetExceeded
	}

	instrCtx, err := execCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	decoder := bin.NewBinDecoder(instrCtx.Data)
	instructionType, err := decoder.ReadByte()
	if err != nil {
		return TokenErrInvalidInstruction
	}

	switch instructionType {
	case TokenInstrTypeInitializeMint, TokenInstrTypeInitializeMint2:
		{
			var initMint TokenInstrInitializeMint
			err = initMint.UnmarshalWithDecoder(decoder)
			if err != nil {
				return TokenErrInvalidInstruction
			}
			if instructionType == TokenInstrTypeInitializeMint {
				execCtx.Logf("Instruction: InitializeMint")
				err = checkAcctForRentSysvar(instrCtx, 1)
				if err != nil {
					return err
				}
			} else {
				execCtx.Logf("Instruction: InitializeMint2")
			}
			return TokenProgramInitializeMint(instrCtx, &initMint, execCtx.SysvarCache.GetRent())
		}

	case TokenInstrTypeInitializeAcct:
		{
			execCtx.Logf("Instruction: InitializeAccount")
			err = instrCtx.CheckNumOfInstructionAccounts(4)
			if err != nil {
				return err
			}
			err = checkAcctForRentSysvar(instrCtx, 3)
			if err != nil {
				return err
			}
			return TokenProgramInitializeAccount(instrCtx, execCtx.SysvarCache.GetRent())
		}

	case TokenInstrTypeRevoke:
		{
			execCtx.Logf("Instruction: Revoke")
			return TokenProgramRevoke(instrCtx)
		}
	}

	amount, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return TokenErrInvalidInstruction
	}

	switch instructionType {
	case TokenInstrTypeTransfer:
		execCtx.Logf("Instruction: Transfer")
		return TokenProgramTransfer(instrCtx, amount)

	case TokenInstrTypeApprove:
		execCtx.Logf("Instruction: Approve")
		return TokenProgramApprove(instrCtx, amount)

	case TokenInstrTypeMintTo:
		execCtx.Logf("Instruction: MintTo")
		return TokenProgramMintTo(instrCtx, amount)

	case TokenInstrTypeBurn:
		execCtx.Logf("Instruction: Burn")
		return TokenProgramBurn(instrCtx, amount)
	}

	klog.Errorf("unsupported token instruction %d", instructionType)
	return TokenErrInvalidInstruction
}

func getTokenMint(acct *BorrowedAccount) (*TokenMint, error) {
	if acct.Owner() != TokenProgramAddr {
		return nil, InstrErrIncorrectProgramId
	}
	mint, err := UnmarshalTokenMint(acct.Data())
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}
	if !mint.IsInitialized {
		return nil, TokenErrUninitializedState
	}
	return mint, nil
}

func getTokenAccount(acct *BorrowedAccount) (*TokenAccount, error) {
	if acct.Owner() != TokenProgramAddr {
		return nil, InstrErrIncorrectProgramId
	}
	tokenAcct, err := UnmarshalTokenAccount(acct.Data())
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}
	if tokenAcct.State == TokenAccountStateUninitialized {
		return nil, TokenErrUninitializedState
	}
	return tokenAcct, nil
}

// validateTokenOwner checks that the instruction account at authorityIdx is
// expectedOwner and signed.
func validateTokenOwner(instrCtx *InstructionCtx, expectedOwner solana.PublicKey, authorityIdx uint64) error {
	authority, err := instrCtx.KeyOfAccountAtIndex(authorityIdx)
	if err != nil {
		return err
	}
	if authority != expectedOwner {
		return TokenErrOwnerMismatch
	}
	isSigner, err := instrCtx.IsInstructionAccountSigner(authorityIdx)
	if err != nil {
		return err
	}
	if !isSigner {
		return InstrErrMissingRequiredSignature
	}
	return nil
}

// spendFromTokenAccount authorizes moving amount out of source, either by its
// owner or by its delegate within the delegated allowance.
func spendFromTokenAccount(instrCtx *InstructionCtx, source *TokenAccount, amount uint64, authorityIdx uint64) error {
	authority, err := instrCtx.KeyOfAccountAtIndex(authorityIdx)
	if err != nil {
		return err
	}

	if source.Delegate.Present && authority == source.Delegate.Pubkey {
		err = validateTokenOwner(instrCtx, source.Delegate.Pubkey, authorityIdx)
		if err != nil {
			return err
		}
		if source.DelegatedAmount < amount {
			return TokenErrInsufficientFunds
		}
		source.DelegatedAmount -= amount
		if source.DelegatedAmount == 0 {
			source.Delegate = COptionPubkey{}
		}
		return nil
	}

	return validateTokenOwner(instrCtx, source.Owner, authorityIdx)
}

func TokenProgramInitializeMint(instrCtx *InstructionCtx, initMint *TokenInstrInitializeMint, rent *SysvarRent) error {
	err := instrCtx.CheckNumOfInstructionAccounts(1)
	if err != nil {
		return err
	}
	mintAcct, err := instrCtx.BorrowInstructionAccount(0)
	if err != nil {
		return err
	}

	mint, err := UnmarshalTokenMint(mintAcct.Data())
	if err != nil {
		return InstrErrInvalidAccountData
	}
	if mint.IsInitialized {
		return TokenErrAlreadyInUse
	}

	if !rent.IsExempt(mintAcct.Lamports(), uint64(len(mintAcct.Data()))) {
		return TokenErrNotRentExempt
	}

	mint = &TokenMint{
		MintAuthority:   SomePubkey(initMint.MintAuthority),
		Decimals:        initMint.Decimals,
		IsInitialized:   true,
		FreezeAuthority: initMint.FreezeAuthority,
	}
	return mintAcct.SetState(mint.Marshal())
}

func TokenProgramInitializeAccount(instrCtx *InstructionCtx, rent *SysvarRent) error {
	tokenAcct, err := instrCtx.BorrowInstructionAccount(0)
	if err != nil {
		return err
	}

	existing, err := UnmarshalTokenAccount(tokenAcct.Data())
	if err != nil {
		return InstrErrInvalidAccountData
	}
	if existing.State != TokenAccountStateUninitialized {
		return TokenErrAlreadyInUse
	}

	if !rent.IsExempt(tokenAcct.Lamports(), uint64(len(tokenAcct.Data()))) {
		return TokenErrNotRentExempt
	}

	mintAcct, err := instrCtx.BorrowInstructionAccount(1)
	if err != nil {
		return err
	}
	if _, err = getTokenMint(mintAcct); err != nil {
		return TokenErrInvalidMint
	}

	owner, err := instrCtx.KeyOfAccountAtIndex(2)
	if err != nil {
		return err
	}

	newAcct := TokenAccount{
		Mint:  mintAcct.Key(),
		Owner: owner,
		State: TokenAccountStateInitialized,
	}
	return tokenAcct.SetState(newAcct.Marshal())
}

func TokenProgramTransfer(instrCtx *InstructionCtx, amount uint64) error {
	err := instrCtx.CheckNumOfInstructionAccounts(3)
	if err != nil {
		return err
	}

	sourceAcct, err := instrCtx.BorrowInstructionAccount(0)
	if err != nil {
		return err
	}
	destAcct, err := instrCtx.BorrowInstructionAccount(1)
	if err != nil {
		return err
	}

	source, err := getTokenAccount(sourceAcct)
	if err != nil {
		return err
	}
	dest, err := getTokenAccount(destAcct)
	if err != nil {
		return err
	}

	if source.IsFrozen() || dest.IsFrozen() {
		return TokenErrAccountFrozen
	}
	if source.Amount < amount {
		return TokenErrInsufficientFunds
	}
	if source.Mint != dest.Mint {
		return TokenErrMintMismatch
	}

	err = spendFromTokenAccount(instrCtx, source, amount, 2)
	if err != nil {
		return err
	}

	// a self-transfer only has to pass validation
	if sourceAcct.Key() == destAcct.Key() {
		return nil
	}

	source.Amount -= amount
	dest.Amount, err = safemath.CheckedAddU64(dest.Amount, amount)
	if err != nil {
		return TokenErrOverflow
	}

	err = sourceAcct.SetState(source.Marshal())
	if err != nil {
		return err
	}
	return destAcct.SetState(dest.Marshal())
}

func TokenProgramApprove(instrCtx *InstructionCtx, amount uint64) error {
	err := instrCtx.CheckNumOfInstructionAccounts(3)
	if err != nil {
		return err
	}

	sourceAcct, err := instrCtx.BorrowInstructionAccount(0)
	if err != nil {
		return err
	}
	source, err := getTokenAccount(sourceAcct)
	if err != nil {
		return err
	}
	if source.IsFrozen() {
		return TokenErrAccountFrozen
	}

	delegate, err := instrCtx.KeyOfAccountAtIndex(1)
	if err != nil {
		return err
	}

	err = validateTokenOwner(instrCtx, source.Owner, 2)
	if err != nil {
		return err
	}

	source.Delegate = SomePubkey(delegate)
	source.DelegatedAmount = amount
	return sourceAcct.SetState(source.Marshal())
}

func TokenProgramRevoke(instrCtx *InstructionCtx) error {
	err := instrCtx.CheckNumOfInstructionAccounts(2)
	if err != nil {
		return err
	}

	sourceAcct, err := instrCtx.BorrowInstructionAccount(0)
	if err != nil {
		return err
	}
	source, err := getTokenAccount(sourceAcct)
	if err != nil {
		return err
	}
	if source.IsFrozen() {
		return TokenErrAccountFrozen
	}

	err = validateTokenOwner(instrCtx, source.Owner, 1)
	if err != nil {
		return err
	}

	source.Delegate = COptionPubkey{}
	source.DelegatedAmount = 0
	return sourceAcct.SetState(source.Marshal())
}

func TokenProgramMintTo(instrCtx *InstructionCtx, amount uint64) error {
	err := instrCtx.CheckNumOfInstructionAccounts(3)
	if err != nil {
		return err
	}

	mintAcct, err := instrCtx.BorrowInstructionAccount(0)
	if err != nil {
		return err
	}
	destAcct, err := instrCtx.BorrowInstructionAccount(1)
	if err != nil {
		return err
	}

	dest, err := getTokenAccount(destAcct)
	if err != nil {
		return err
	}
	if dest.IsFrozen() {
		return TokenErrAccountFrozen
	}
	if dest.Mint != mintAcct.Key() {
		return TokenErrMintMismatch
	}

	mint, err := getTokenMint(mintAcct)
	if err != nil {
		return err
	}
	if !mint.MintAuthority.Present {
		return TokenErrFixedSupply
	}
	err = validateTokenOwner(instrCtx, mint.MintAuthority.Pubkey, 2)
	if err != nil {
		return err
	}

	mint.Supply, err = safemath.CheckedAddU64(mint.Supply, amount)
	if err != nil {
		return TokenErrOverflow
	}
	dest.Amount, err = safemath.CheckedAddU64(dest.Amount, amount)
	if err != nil {
		return TokenErrOverflow
	}

	err = mintAcct.SetState(mint.Marshal())
	if err != nil {
		return err
	}
	return destAcct.SetState(dest.Marshal())
}

func TokenProgramBurn(instrCtx *InstructionCtx, amount uint64) error {
	err := instrCtx.CheckNumOfInstructionAccounts(3)
	if err != nil {
		return err
	}

	sourceAcct, err := instrCtx.BorrowInstructionAccount(0)
	if err != nil {
		return err
	}
	mintAcct, err := instrCtx.BorrowInstructionAccount(1)
	if err != nil {
		return err
	}

	source, err := getTokenAccount(sourceAcct)
	if err != nil {
		return err
	}
	if source.IsFrozen() {
		return TokenErrAccountFrozen
	}
	if source.IsNative {
		return TokenErrNativeNotSupported
	}
	if source.Amount < amount {
		return TokenErrInsufficientFunds
	}
	if source.Mint != mintAcct.Key() {
		return TokenErrMintMismatch
	}

	mint, err := getTokenMint(mintAcct)
	if err != nil {
		return err
	}

	err = spendFromTokenAccount(instrCtx, source, amount, 2)
	if err != nil {
		return err
	}

	source.Amount -= amount
	mint.Supply, err = safemath.CheckedSubU64(mint.Supply, amount)
	if err != nil {
		return TokenErrOverflow
	}

	err = sourceAcct.SetState(source.Marshal())
	if err != nil {
		return err
	}
	return mintAcct.SetState(mint.Marshal())
}
