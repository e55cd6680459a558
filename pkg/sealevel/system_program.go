package sealevel

import (
	"bytes"
	"errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

const (
	SystemProgramInstrTypeCreateAccount = iota
	SystemProgramInstrTypeAssign
	SystemProgramInstrTypeTransfer
	SystemProgramInstrTypeCreateAccountWithSeed
	SystemProgramInstrTypeAdvanceNonceAccount
	SystemProgramInstrTypeWithdrawNonceAccount
	SystemProgramInstrTypeInitializeNonceAccount
	SystemProgramInstrTypeAuthorizeNonceAccount
	SystemProgramInstrTypeAllocate
)

const SystemProgMaxPermittedDataLen = MaxPermittedDataLength

// system program errors
var (
	SystemProgErrAccountAlreadyInUse        = errors.New("SystemProgErrAccountAlreadyInUse")
	SystemProgErrResultWithNegativeLamports = errors.New("SystemProgErrResultWithNegativeLamports")
	SystemProgErrInvalidAccountDataLength   = errors.New("SystemProgErrInvalidAccountDataLength")
)

type SystemInstrCreateAccount struct {
	Lamports uint64
	Space    uint64
	Owner    solana.PublicKey
}

type SystemInstrAssign struct {
	Owner solana.PublicKey
}

type SystemInstrTransfer struct {
	Lamports uint64
}

type SystemInstrAllocate struct {
	Space uint64
}

func (instr *SystemInstrCreateAccount) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Lamports, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	instr.Space, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	owner, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(instr.Owner[:], owner)
	return nil
}

func (instr *SystemInstrCreateAccount) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeCreateAccount, bin.LE)
	_ = encoder.WriteUint64(instr.Lamports, bin.LE)
	_ = encoder.WriteUint64(instr.Space, bin.LE)
	return encoder.WriteBytes(instr.Owner[:], false)
}

func (instr *SystemInstrAssign) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	owner, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(instr.Owner[:], owner)
	return nil
}

func (instr *SystemInstrAssign) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeAssign, bin.LE)
	return encoder.WriteBytes(instr.Owner[:], false)
}

func (instr *SystemInstrTransfer) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Lamports, err = decoder.ReadUint64(bin.LE)
	return err
}

func (instr *SystemInstrTransfer) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeTransfer, bin.LE)
	return encoder.WriteUint64(instr.Lamports, bin.LE)
}

func (instr *SystemInstrAllocate) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Space, err = decoder.ReadUint64(bin.LE)
	return err
}

func (instr *SystemInstrAllocate) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(SystemProgramInstrTypeAllocate, bin.LE)
	return encoder.WriteUint64(instr.Space, bin.LE)
}

type instrEncoder interface {
	MarshalWithEncoder(encoder *bin.Encoder) error
}

func encodeInstrData(instr instrEncoder) []byte {
	buf := new(bytes.Buffer)
	_ = instr.MarshalWithEncoder(bin.NewBinEncoder(buf))
	return buf.Bytes()
}

func NewCreateAccountInstruction(from solana.PublicKey, to solana.PublicKey, lamports uint64, space uint64, owner solana.PublicKey) Instruction {
	instr := SystemInstrCreateAccount{Lamports: lamports, Space: space, Owner: owner}
	return Instruction{
		Accounts:  []AccountMeta{WritableSignerMeta(from), WritableSignerMeta(to)},
		Data:      encodeInstrData(&instr),
		ProgramId: SystemProgramAddr,
	}
}

func NewTransferInstruction(from solana.PublicKey, to solana.PublicKey, lamports uint64) Instruction {
	instr := SystemInstrTransfer{Lamports: lamports}
	return Instruction{
		Accounts:  []AccountMeta{WritableSignerMeta(from), WritableMeta(to)},
		Data:      encodeInstrData(&instr),
		ProgramId: SystemProgramAddr,
	}
}

func NewAllocateInstruction(pubkey solana.PublicKey, space uint64) Instruction {
	instr := SystemInstrAllocate{Space: space}
	return Instruction{
		Accounts:  []AccountMeta{WritableSignerMeta(pubkey)},
		Data:      encodeInstrData(&instr),
		ProgramId: SystemProgramAddr,
	}
}

func NewAssignInstruction(pubkey solana.PublicKey, owner solana.PublicKey) Instruction {
	instr := SystemInstrAssign{Owner: owner}
	return Instruction{
		Accounts:  []AccountMeta{WritableSignerMeta(pubkey)},
		Data:      encodeInstrData(&instr),
		ProgramId: SystemProgramAddr,
	}
}

func SystemProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUSystemProgramDefaultComputeUnits)
	if err != nil {
		return InstrErrComputationalBudgetExceeded
	}

	instrCtx, err := execCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	decoder := bin.NewBinDecoder(instrCtx.Data)

	instructionType, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return InstrErrInvalidInstructionData
	}

	signers := instrCtx.Signers()

	switch instructionType {
	case SystemProgramInstrTypeCreateAccount:
		{
			var createAccount SystemInstrCreateAccount
			err = createAccount.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}
			err = SystemProgramCreateAccount(execCtx, instrCtx, createAccount.Lamports, createAccount.Space, createAccount.Owner, signers)
		}

	case SystemProgramInstrTypeAssign:
		{
			var assign SystemInstrAssign
			err = assign.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			err = instrCtx.CheckNumOfInstructionAccounts(1)
			if err != nil {
				return err
			}
			acct, err := instrCtx.BorrowInstructionAccount(0)
			if err != nil {
				return err
			}
			return SystemProgramAssign(acct, assign.Owner, signers)
		}

	case SystemProgramInstrTypeTransfer:
		{
			var transfer SystemInstrTransfer
			err = transfer.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}
			err = SystemProgramTransfer(instrCtx, 0, 1, transfer.Lamports)
		}

	case SystemProgramInstrTypeAllocate:
		{
			var allocate SystemInstrAllocate
			err = allocate.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			err = instrCtx.CheckNumOfInstructionAccounts(1)
			if err != nil {
				return err
			}
			acct, err := instrCtx.BorrowInstructionAccount(0)
			if err != nil {
				return err
			}
			return SystemProgramAllocate(acct, allocate.Space, signers)
		}

	default:
		return InstrErrInvalidInstructionData
	}

	return err
}

func SystemProgramCreateAccount(execCtx *ExecutionCtx, instrCtx *InstructionCtx, lamports uint64, space uint64, owner solana.PublicKey, signers []solana.PublicKey) error {
	toAcct, err := instrCtx.BorrowInstructionAccount(1)
	if err != nil {
		return err
	}

	if toAcct.Lamports() > 0 {
		klog.Errorf("CreateAccount: account %s already in use (non-zero lamports)", toAcct.Key())
		execCtx.Logf("Create Account: account %s already in use", toAcct.Key())
		return SystemProgErrAccountAlreadyInUse
	}

	err = SystemProgramAllocateAndAssign(toAcct, space, owner, signers)
	if err != nil {
		return err
	}

	return SystemProgramTransfer(instrCtx, 0, 1, lamports)
}

func SystemProgramAllocateAndAssign(toAcct *BorrowedAccount, space uint64, owner solana.PublicKey, signers []solana.PublicKey) error {
	err := SystemProgramAllocate(toAcct, space, signers)
	if err != nil {
		return err
	}

	return SystemProgramAssign(toAcct, owner, signers)
}

func SystemProgramAllocate(acct *BorrowedAccount, space uint64, signers []solana.PublicKey) error {
	address := acct.Key()
	if verifySigner(address, signers) != nil {
		klog.Errorf("Allocate: 'to' account %s must sign", address)
		return InstrErrMissingRequiredSignature
	}

	if len(acct.Data()) != 0 || acct.Owner() != SystemProgramAddr {
		klog.Errorf("Allocate: account %s already in use", address)
		return SystemProgErrAccountAlreadyInUse
	}

	if space > SystemProgMaxPermittedDataLen {
		klog.Errorf("Allocate: requested %d, max allowed %d", space, SystemProgMaxPermittedDataLen)
		return SystemProgErrInvalidAccountDataLength
	}

	return acct.SetDataLength(space)
}

func SystemProgramAssign(acct *BorrowedAccount, owner solana.PublicKey, signers []solana.PublicKey) error {
	if acct.Owner() == owner {
		return nil
	}

	address := acct.Key()
	if verifySigner(address, signers) != nil {
		klog.Errorf("Assign: account %s must sign", address)
		return InstrErrMissingRequiredSignature
	}

	return acct.SetOwner(owner)
}

func SystemProgramTransfer(instrCtx *InstructionCtx, fromAcctIdx uint64, toAcctIdx uint64, lamports uint64) error {
	isSigner, err := instrCtx.IsInstructionAccountSigner(fromAcctIdx)
	if err != nil {
		return err
	}

	if !isSigner {
		klog.Errorf("Transfer: from account must sign")
		return InstrErrMissingRequiredSignature
	}

	return transferInternal(instrCtx, fromAcctIdx, toAcctIdx, lamports)
}

func transferInternal(instrCtx *InstructionCtx, fromAcctIdx uint64, toAcctIdx uint64, lamports uint64) error {
	from, err := instrCtx.BorrowInstructionAccount(fromAcctIdx)
	if err != nil {
		return err
	}

	if len(from.Data()) != 0 {
		klog.Errorf("Transfer: 'from' must not carry data")
		return InstrErrInvalidArgument
	}

	if lamports > from.Lamports() {
		klog.Errorf("Transfer: insufficient lamports %d, need %d", from.Lamports(), lamports)
		return SystemProgErrResultWithNegativeLamports
	}

	err = from.CheckedSubLamports(lamports)
	if err != nil {
		return err
	}

	to, err := instrCtx.BorrowInstructionAccount(toAcctIdx)
	if err != nil {
		return err
	}

	return to.CheckedAddLamports(lamports)
}
