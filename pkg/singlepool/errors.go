package singlepool

import (
	"errors"
)

// single pool errors
var (
	SinglePoolErrAlreadyInUse            = errors.New("SinglePoolErrAlreadyInUse")
	SinglePoolErrInvalidPoolStakeAccount = errors.New("SinglePoolErrInvalidPoolStakeAccount")
	SinglePoolErrInvalidPoolAuthority    = errors.New("SinglePoolErrInvalidPoolAuthority")
	SinglePoolErrInvalidPoolMint         = errors.New("SinglePoolErrInvalidPoolMint")
	SinglePoolErrInvalidMetadataAccount  = errors.New("SinglePoolErrInvalidMetadataAccount")
	SinglePoolErrInvalidMetadataSigner   = errors.New("SinglePoolErrInvalidMetadataSigner")
	SinglePoolErrDepositTooSmall         = errors.New("SinglePoolErrDepositTooSmall")
	SinglePoolErrWithdrawalTooSmall      = errors.New("SinglePoolErrWithdrawalTooSmall")
	SinglePoolErrWithdrawalTooLarge      = errors.New("SinglePoolErrWithdrawalTooLarge")
	SinglePoolErrSignatureMissing        = errors.New("SinglePoolErrSignatureMissing")
	SinglePoolErrWrongStakeState         = errors.New("SinglePoolErrWrongStakeState")
	SinglePoolErrArithmeticOverflow      = errors.New("SinglePoolErrArithmeticOverflow")
	SinglePoolErrUnexpectedMathError     = errors.New("SinglePoolErrUnexpectedMathError")
	SinglePoolErrLegacyVoteAccount       = errors.New("SinglePoolErrLegacyVoteAccount")
	SinglePoolErrUnparseableVoteAccount  = errors.New("SinglePoolErrUnparseableVoteAccount")
	SinglePoolErrWrongRentAmount         = errors.New("SinglePoolErrWrongRentAmount")
	SinglePoolErrInvalidPoolAccountUsage = errors.New("SinglePoolErrInvalidPoolAccountUsage")
)

// custom program error codes, in the order clients decode them
var customErrorCodes = []error{
	SinglePoolErrAlreadyInUse,
	SinglePoolErrInvalidPoolStakeAccount,
	SinglePoolErrInvalidPoolAuthority,
	SinglePoolErrInvalidPoolMint,
	SinglePoolErrInvalidMetadataAccount,
	SinglePoolErrInvalidMetadataSigner,
	SinglePoolErrDepositTooSmall,
	SinglePoolErrWithdrawalTooSmall,
	SinglePoolErrWithdrawalTooLarge,
	SinglePoolErrSignatureMissing,
	SinglePoolErrWrongStakeState,
	SinglePoolErrArithmeticOverflow,
	SinglePoolErrUnexpectedMathError,
	SinglePoolErrLegacyVoteAccount,
	SinglePoolErrUnparseableVoteAccount,
	SinglePoolErrWrongRentAmount,
	SinglePoolErrInvalidPoolAccountUsage,
}

// CustomErrorCode returns the custom program error code carried by err, if
// err is (or wraps) one of the single pool errors.
func CustomErrorCode(err error) (uint32, bool) {
	for code, poolErr := range customErrorCodes {
		if errors.Is(err, poolErr) {
			return uint32(code), true
		}
	}
	return 0, false
}

// ErrorFromCode is the inverse of CustomErrorCode.
func ErrorFromCode(code uint32) error {
	if int(code) >= len(customErrorCodes) {
		return nil
	}
	return customErrorCodes[code]
}
