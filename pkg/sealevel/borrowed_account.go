package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/accounts"
	"go.firedancer.io/singlepool/pkg/safemath"
)

// MaxPermittedDataLength is the largest data size an account may be resized to.
const MaxPermittedDataLength = 10 * 1024 * 1024

// BorrowedAccount is an instruction account resolved against the transaction's
// working set. All mutations go through it so that the ownership and write
// privileges of the executing program are enforced.
type BorrowedAccount struct {
	InstrCtx           *InstructionCtx
	IndexInInstruction uint64
	Account            *accounts.Account
}

func (acct *BorrowedAccount) Key() solana.PublicKey {
	return acct.InstrCtx.InstructionAccounts[acct.IndexInInstruction].Pubkey
}

func (acct *BorrowedAccount) Owner() solana.PublicKey {
	return acct.Account.Owner
}

func (acct *BorrowedAccount) Lamports() uint64 {
	return acct.Account.Lamports
}

func (acct *BorrowedAccount) Data() []byte {
	return acct.Account.Data
}

func (acct *BorrowedAccount) IsExecutable() bool {
	return acct.Account.Executable
}

func (acct *BorrowedAccount) IsSigner() bool {
	return acct.InstrCtx.InstructionAccounts[acct.IndexInInstruction].IsSigner
}

func (acct *BorrowedAccount) IsWritable() bool {
	return acct.InstrCtx.InstructionAccounts[acct.IndexInInstruction].IsWritable
}

func (acct *BorrowedAccount) IsOwnedByCurrentProgram() bool {
	return acct.InstrCtx.ProgramId() == acct.Owner()
}

func (acct *BorrowedAccount) SetLamports(lamports uint64) error {
	// "An account not owned by the program cannot have its balance decrease"
	if !acct.IsOwnedByCurrentProgram() && lamports < acct.Lamports() {
		return InstrErrExternalAccountLamportSpend
	}
	if !acct.IsWritable() {
		return InstrErrReadonlyLamportChange
	}
	if acct.IsExecutable() {
		return InstrErrExecutableLamportChange
	}
	acct.Account.Lamports = lamports
	return nil
}

func (acct *BorrowedAccount) CheckedAddLamports(lamports uint64) error {
	newLamports, err := safemath.CheckedAddU64(acct.Lamports(), lamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	return acct.SetLamports(newLamports)
}

func (acct *BorrowedAccount) CheckedSubLamports(lamports uint64) error {
	newLamports, err := safemath.CheckedSubU64(acct.Lamports(), lamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	return acct.SetLamports(newLamports)
}

func (acct *BorrowedAccount) DataCanBeChanged() error {
	if acct.IsExecutable() {
		return InstrErrExecutableDataModified
	}
	if !acct.IsWritable() {
		return InstrErrReadonlyDataModified
	}
	if !acct.IsOwnedByCurrentProgram() {
		return InstrErrExternalAccountDataModified
	}
	return nil
}

func (acct *BorrowedAccount) DataCanBeResized(newLength uint64) error {
	if newLength != uint64(len(acct.Data())) && !acct.IsOwnedByCurrentProgram() {
		return InstrErrAccountDataSizeChanged
	}
	if newLength > MaxPermittedDataLength {
		return InstrErrInvalidRealloc
	}
	return nil
}

// SetState overwrites the start of the account data with state, leaving the
// account's size untouched.
func (acct *BorrowedAccount) SetState(state []byte) error {
	err := acct.DataCanBeChanged()
	if err != nil {
		return err
	}
	if len(state) > len(acct.Data()) {
		return InstrErrAccountDataTooSmall
	}
	copy(acct.Account.Data, state)
	return nil
}

// SetData replaces the account data, resizing the account if needed.
func (acct *BorrowedAccount) SetData(data []byte) error {
	err := acct.DataCanBeResized(uint64(len(data)))
	if err != nil {
		return err
	}
	err = acct.DataCanBeChanged()
	if err != nil {
		return err
	}
	newData := make([]byte, len(data))
	copy(newData, data)
	acct.Account.Data = newData
	return nil
}

func (acct *BorrowedAccount) SetDataLength(newLength uint64) error {
	err := acct.DataCanBeResized(newLength)
	if err != nil {
		return err
	}
	err = acct.DataCanBeChanged()
	if err != nil {
		return err
	}

	oldLength := uint64(len(acct.Data()))
	if newLength == oldLength {
		return nil
	}
	if newLength < oldLength {
		acct.Account.Data = acct.Account.Data[:newLength]
		return nil
	}
	newData := make([]byte, newLength)
	copy(newData, acct.Account.Data)
	acct.Account.Data = newData
	return nil
}

func (acct *BorrowedAccount) SetOwner(owner solana.PublicKey) error {
	if !acct.IsOwnedByCurrentProgram() || !acct.IsWritable() || acct.IsExecutable() {
		return InstrErrModifiedProgramId
	}
	for _, b := range acct.Data() {
		if b != 0 {
			return InstrErrModifiedProgramId
		}
	}
	acct.Account.Owner = owner
	return nil
}
