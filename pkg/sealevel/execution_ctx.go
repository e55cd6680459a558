package sealevel

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/samber/lo"
	"go.firedancer.io/singlepool/pkg/cu"
	"go.firedancer.io/singlepool/pkg/features"
	pda "go.firedancer.io/singlepool/pkg/solana"
	"k8s.io/klog/v2"
)

// MaxInstructionStackDepth bounds the nesting of cross-program invocations,
// counting the top-level instruction.
const MaxInstructionStackDepth = 5

const (
	CUInvokeUnits                      = 1000
	CUCreateProgramAddressUnits        = 1500
	CUSystemProgramDefaultComputeUnits = 150
	CUStakeProgramDefaultComputeUnits  = 750
	CUTokenProgramDefaultComputeUnits  = 2000
	CUMetadataProgramComputeUnits      = 5000
)

type ExecutionCtx struct {
	Log                Logger
	TransactionContext *TransactionCtx
	ComputeMeter       cu.ComputeMeter
	Features           *features.Features
	SysvarCache        SysvarCache
	programs           map[solana.PublicKey]ProcessInstructionFn
	commitHooks        []func()
}

// OnCommit defers fn until the bank has written the transaction's accounts.
// Hooks of a failed transaction never run.
func (execCtx *ExecutionCtx) OnCommit(fn func()) {
	execCtx.commitHooks = append(execCtx.commitHooks, fn)
}

func (execCtx *ExecutionCtx) CurrentInstructionCtx() (*InstructionCtx, error) {
	return execCtx.TransactionContext.CurrentInstructionCtx()
}

func (execCtx *ExecutionCtx) StackHeight() uint64 {
	return execCtx.TransactionContext.InstructionCtxStackHeight()
}

// PrepareInstruction resolves the accounts of a cross-program invocation
// against the caller's instruction accounts and checks that no privilege is
// escalated on the way. signers are the addresses the caller signs for by
// program derivation.
func (execCtx *ExecutionCtx) PrepareInstruction(ix Instruction, signers []solana.PublicKey) ([]InstructionAccount, error) {
	ixCtx, err := execCtx.CurrentInstructionCtx()
	if err != nil {
		return nil, err
	}

	dedupInstructionAccounts := make([]InstructionAccount, 0, len(ix.Accounts))
	duplicateIndices := make([]int, 0, len(ix.Accounts))

	for _, accountMeta := range ix.Accounts {
		_, duplicateIndex, found := lo.FindIndexOf(dedupInstructionAccounts, func(instrAcct InstructionAccount) bool {
			return instrAcct.Pubkey == accountMeta.Pubkey
		})

		if found {
			duplicateIndices = append(duplicateIndices, duplicateIndex)
			dedupInstructionAccounts[duplicateIndex].IsSigner = dedupInstructionAccounts[duplicateIndex].IsSigner || accountMeta.IsSigner
			dedupInstructionAccounts[duplicateIndex].IsWritable = dedupInstructionAccounts[duplicateIndex].IsWritable || accountMeta.IsWritable
			continue
		}

		indexInCaller, err := ixCtx.IndexOfInstructionAccount(accountMeta.Pubkey)
		if err != nil {
			klog.Errorf("instruction references unknown account %s", accountMeta.Pubkey)
			return nil, err
		}
		duplicateIndices = append(duplicateIndices, len(dedupInstructionAccounts))
		dedupInstructionAccounts = append(dedupInstructionAccounts, InstructionAccount{
			Pubkey:        accountMeta.Pubkey,
			IndexInCaller: int(indexInCaller),
			IsSigner:      accountMeta.IsSigner,
			IsWritable:    accountMeta.IsWritable,
		})
	}

	for _, instrAcct := range dedupInstructionAccounts {
		callerAcct := ixCtx.InstructionAccounts[instrAcct.IndexInCaller]

		// "Read-only in caller cannot become writable in callee"
		if instrAcct.IsWritable && !callerAcct.IsWritable {
			klog.Errorf("%s's writable privilege escalated", instrAcct.Pubkey)
			return nil, InstrErrPrivilegeEscalation
		}

		// "To be signed in the callee,
		// it must be either signed in the caller or by the program"
		if instrAcct.IsSigner && !(callerAcct.IsSigner || lo.Contains(signers, instrAcct.Pubkey)) {
			klog.Errorf("%s's signer privilege escalated", instrAcct.Pubkey)
			return nil, InstrErrPrivilegeEscalation
		}
	}

	instructionAccounts := lo.Map(duplicateIndices, func(duplicateIndex int, _ int) InstructionAccount {
		return dedupInstructionAccounts[duplicateIndex]
	})

	// "Find and validate executables / program accounts"
	programAcctIdx, err := ixCtx.IndexOfInstructionAccount(ix.ProgramId)
	if err != nil {
		klog.Errorf("unknown program %s", ix.ProgramId)
		return nil, err
	}
	programAcct, err := ixCtx.BorrowInstructionAccount(programAcctIdx)
	if err != nil {
		return nil, err
	}
	if !programAcct.IsExecutable() {
		klog.Errorf("account %s is not executable", ix.ProgramId)
		return nil, InstrErrAccountNotExecutable
	}

	return instructionAccounts, nil
}

// ProcessInstruction runs programId on a new instruction frame.
func (execCtx *ExecutionCtx) ProcessInstruction(programId solana.PublicKey, instrData []byte, instructionAccts []InstructionAccount) error {
	instrCtx := execCtx.TransactionContext.NewInstructionCtx(programId, instructionAccts, instrData)

	err := execCtx.Push(instrCtx)
	if err != nil {
		return err
	}

	execCtx.Log.Log(fmt.Sprintf("Program %s invoke [%d]", programId, execCtx.StackHeight()))
	preLamports := execCtx.instructionLamports(instrCtx)

	err1 := execCtx.ExecuteInstruction()
	if err1 == nil && !preLamports.Eq(execCtx.instructionLamports(instrCtx)) {
		err1 = InstrErrUnbalancedInstruction
	}

	if err1 != nil {
		execCtx.Log.Log(fmt.Sprintf("Program %s failed: %s", programId, err1))
	} else {
		execCtx.Log.Log(fmt.Sprintf("Program %s success", programId))
	}

	err2 := execCtx.Pop()

	if err1 != nil {
		return err1
	}
	return err2
}

func (execCtx *ExecutionCtx) ExecuteInstruction() error {
	instrCtx, err := execCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	programFn, ok := execCtx.programs[instrCtx.ProgramId()]
	if !ok {
		klog.Errorf("no program registered for %s", instrCtx.ProgramId())
		return InstrErrUnsupportedProgramId
	}

	klog.V(2).Infof("calling program %s", instrCtx.ProgramId())
	return programFn(execCtx)
}

func (execCtx *ExecutionCtx) Push(instrCtx *InstructionCtx) error {
	txCtx := execCtx.TransactionContext
	programId := instrCtx.ProgramId()

	if txCtx.InstructionCtxStackHeight() >= MaxInstructionStackDepth {
		return InstrErrCallDepth
	}

	if txCtx.InstructionCtxStackHeight() != 0 {
		contains := lo.ContainsBy(txCtx.instructionStack, func(ic *InstructionCtx) bool {
			return ic.ProgramId() == programId
		})

		current, err := txCtx.CurrentInstructionCtx()
		if err != nil {
			return err
		}
		isLast := current.ProgramId() == programId

		if contains && !isLast {
			return InstrErrReentrancyNotAllowed
		}
	}

	txCtx.PushInstructionCtx(instrCtx)
	return nil
}

func (execCtx *ExecutionCtx) Pop() error {
	return execCtx.TransactionContext.PopInstructionCtx()
}

// NativeInvoke performs a cross-program invocation from the current program.
func (execCtx *ExecutionCtx) NativeInvoke(instruction Instruction, signers []solana.PublicKey) error {
	err := execCtx.ComputeMeter.Consume(CUInvokeUnits)
	if err != nil {
		return InstrErrComputationalBudgetExceeded
	}

	instrAccts, err := execCtx.PrepareInstruction(instruction, signers)
	if err != nil {
		return err
	}

	caller, err := execCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}
	err = execCtx.TransactionContext.SetReturnData(caller.ProgramId(), nil)
	if err != nil {
		return err
	}

	return execCtx.ProcessInstruction(instruction.ProgramId, instruction.Data, instrAccts)
}

// InvokeSigned performs a cross-program invocation, signing for every program
// derived address produced by signerSeeds under the current program's id.
func (execCtx *ExecutionCtx) InvokeSigned(instruction Instruction, signerSeeds [][][]byte) error {
	caller, err := execCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}
	programId := caller.ProgramId()

	signers := make([]solana.PublicKey, 0, len(signerSeeds))
	for _, seeds := range signerSeeds {
		err = execCtx.ComputeMeter.Consume(CUCreateProgramAddressUnits)
		if err != nil {
			return InstrErrComputationalBudgetExceeded
		}
		addr, err := pda.CreateProgramAddressBytes(seeds, programId[:])
		if err != nil {
			klog.Errorf("could not create program address with signer seeds: %s", err)
			return InstrErrInvalidSeeds
		}
		signers = append(signers, solana.PublicKeyFromBytes(addr))
	}

	return execCtx.NativeInvoke(instruction, signers)
}

// Logf emits a program log line on behalf of the current program.
func (execCtx *ExecutionCtx) Logf(format string, args ...interface{}) {
	programLogf(execCtx.Log, format, args...)
}

func (execCtx *ExecutionCtx) instructionLamports(instrCtx *InstructionCtx) *uint256.Int {
	total := new(uint256.Int)
	seen := make(map[solana.PublicKey]struct{}, len(instrCtx.InstructionAccounts))
	for _, instrAcct := range instrCtx.InstructionAccounts {
		if _, ok := seen[instrAcct.Pubkey]; ok {
			continue
		}
		seen[instrAcct.Pubkey] = struct{}{}
		if acct, ok := execCtx.TransactionContext.Account(instrAcct.Pubkey); ok {
			total.AddUint64(total, acct.Lamports)
		}
	}
	return total
}
