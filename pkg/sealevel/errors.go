package sealevel

import (
	"errors"
	"fmt"
)

// instruction errors
var (
	InstrErrGenericError                = errors.New("InstrErrGenericError")
	InstrErrInvalidArgument             = errors.New("InstrErrInvalidArgument")
	InstrErrInvalidInstructionData      = errors.New("InstrErrInvalidInstructionData")
	InstrErrInvalidAccountData          = errors.New("InstrErrInvalidAccountData")
	InstrErrAccountDataTooSmall         = errors.New("InstrErrAccountDataTooSmall")
	InstrErrInsufficientFunds           = errors.New("InstrErrInsufficientFunds")
	InstrErrIncorrectProgramId          = errors.New("InstrErrIncorrectProgramId")
	InstrErrMissingRequiredSignature    = errors.New("InstrErrMissingRequiredSignature")
	InstrErrAccountAlreadyInitialized   = errors.New("InstrErrAccountAlreadyInitialized")
	InstrErrUninitializedAccount        = errors.New("InstrErrUninitializedAccount")
	InstrErrUnbalancedInstruction       = errors.New("InstrErrUnbalancedInstruction")
	InstrErrModifiedProgramId           = errors.New("InstrErrModifiedProgramId")
	InstrErrExternalAccountLamportSpend = errors.New("InstrErrExternalAccountLamportSpend")
	InstrErrExternalAccountDataModified = errors.New("InstrErrExternalAccountDataModified")
	InstrErrReadonlyLamportChange       = errors.New("InstrErrReadonlyLamportChange")
	InstrErrReadonlyDataModified        = errors.New("InstrErrReadonlyDataModified")
	InstrErrExecutableDataModified      = errors.New("InstrErrExecutableDataModified")
	InstrErrExecutableLamportChange     = errors.New("InstrErrExecutableLamportChange")
	InstrErrNotEnoughAccountKeys        = errors.New("InstrErrNotEnoughAccountKeys")
	InstrErrAccountDataSizeChanged      = errors.New("InstrErrAccountDataSizeChanged")
	InstrErrAccountNotExecutable        = errors.New("InstrErrAccountNotExecutable")
	InstrErrUnsupportedProgramId        = errors.New("InstrErrUnsupportedProgramId")
	InstrErrCallDepth                   = errors.New("InstrErrCallDepth")
	InstrErrMissingAccount              = errors.New("InstrErrMissingAccount")
	InstrErrReentrancyNotAllowed        = errors.New("InstrErrReentrancyNotAllowed")
	InstrErrInvalidSeeds                = errors.New("InstrErrInvalidSeeds")
	InstrErrPrivilegeEscalation         = errors.New("InstrErrPrivilegeEscalation")
	InstrErrComputationalBudgetExceeded = errors.New("InstrErrComputationalBudgetExceeded")
	InstrErrArithmeticOverflow          = errors.New("InstrErrArithmeticOverflow")
	InstrErrInvalidAccountOwner         = errors.New("InstrErrInvalidAccountOwner")
	InstrErrInvalidRealloc              = errors.New("InstrErrInvalidRealloc")
)

// instruction errors - Solana numerical error codes
const (
	InstrErrCodeSuccess                     = 0
	InstrErrCodeGenericError                = 1
	InstrErrCodeInvalidArgument             = 2
	InstrErrCodeInvalidInstructionData      = 3
	InstrErrCodeInvalidAccountData          = 4
	InstrErrCodeAccountDataTooSmall         = 5
	InstrErrCodeInsufficientFunds           = 6
	InstrErrCodeIncorrectProgramId          = 7
	InstrErrCodeMissingRequiredSignature    = 8
	InstrErrCodeAccountAlreadyInitialized   = 9
	InstrErrCodeUninitializedAccount        = 10
	InstrErrCodeUnbalancedInstruction       = 11
	InstrErrCodeModifiedProgramId           = 12
	InstrErrCodeExternalAccountLamportSpend = 13
	InstrErrCodeExternalAccountDataModified = 14
	InstrErrCodeReadonlyLamportChange       = 15
	InstrErrCodeReadonlyDataModified        = 16
	InstrErrCodeNotEnoughAccountKeys        = 20
	InstrErrCodeAccountDataSizeChanged      = 21
	InstrErrCodeAccountNotExecutable        = 22
	InstrErrCodeCustom                      = 25
	InstrErrCodeExecutableDataModified      = 28
	InstrErrCodeUnsupportedProgramId        = 31
	InstrErrCodeCallDepth                   = 32
	InstrErrCodeMissingAccount              = 33
	InstrErrCodeReentrancyNotAllowed        = 34
	InstrErrCodeInvalidSeeds                = 38
	InstrErrCodePrivilegeEscalation         = 41
	InstrErrCodeComputationalBudgetExceeded = 44
	InstrErrCodeInvalidAccountOwner         = 47
	InstrErrCodeArithmeticOverflow          = 48
)

var instrErrCodes = map[error]int{
	InstrErrGenericError:                InstrErrCodeGenericError,
	InstrErrInvalidArgument:             InstrErrCodeInvalidArgument,
	InstrErrInvalidInstructionData:      InstrErrCodeInvalidInstructionData,
	InstrErrInvalidAccountData:          InstrErrCodeInvalidAccountData,
	InstrErrAccountDataTooSmall:         InstrErrCodeAccountDataTooSmall,
	InstrErrInsufficientFunds:           InstrErrCodeInsufficientFunds,
	InstrErrIncorrectProgramId:          InstrErrCodeIncorrectProgramId,
	InstrErrMissingRequiredSignature:    InstrErrCodeMissingRequiredSignature,
	InstrErrAccountAlreadyInitialized:   InstrErrCodeAccountAlreadyInitialized,
	InstrErrUninitializedAccount:        InstrErrCodeUninitializedAccount,
	InstrErrUnbalancedInstruction:       InstrErrCodeUnbalancedInstruction,
	InstrErrModifiedProgramId:           InstrErrCodeModifiedProgramId,
	InstrErrExternalAccountLamportSpend: InstrErrCodeExternalAccountLamportSpend,
	InstrErrExternalAccountDataModified: InstrErrCodeExternalAccountDataModified,
	InstrErrReadonlyLamportChange:       InstrErrCodeReadonlyLamportChange,
	InstrErrReadonlyDataModified:        InstrErrCodeReadonlyDataModified,
	InstrErrNotEnoughAccountKeys:        InstrErrCodeNotEnoughAccountKeys,
	InstrErrAccountDataSizeChanged:      InstrErrCodeAccountDataSizeChanged,
	InstrErrAccountNotExecutable:        InstrErrCodeAccountNotExecutable,
	InstrErrExecutableDataModified:      InstrErrCodeExecutableDataModified,
	InstrErrUnsupportedProgramId:        InstrErrCodeUnsupportedProgramId,
	InstrErrCallDepth:                   InstrErrCodeCallDepth,
	InstrErrMissingAccount:              InstrErrCodeMissingAccount,
	InstrErrReentrancyNotAllowed:        InstrErrCodeReentrancyNotAllowed,
	InstrErrInvalidSeeds:                InstrErrCodeInvalidSeeds,
	InstrErrPrivilegeEscalation:         InstrErrCodePrivilegeEscalation,
	InstrErrComputationalBudgetExceeded: InstrErrCodeComputationalBudgetExceeded,
	InstrErrInvalidAccountOwner:         InstrErrCodeInvalidAccountOwner,
	InstrErrArithmeticOverflow:          InstrErrCodeArithmeticOverflow,
}

// TranslateErrToInstrErrCode maps an error returned by a program to the numeric
// instruction error code reported by the runtime. Errors outside the builtin
// instruction errors, such as program-specific errors, are reported as custom.
func TranslateErrToInstrErrCode(err error) int {
	if err == nil {
		return InstrErrCodeSuccess
	}
	for target, code := range instrErrCodes {
		if errors.Is(err, target) {
			return code
		}
	}
	return InstrErrCodeCustom
}

// InstructionError reports which instruction of a transaction failed.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("error processing instruction %d: %s", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}
