package sealevel

import (
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
	"go.firedancer.io/singlepool/pkg/base58"
)

func mustAddr(s string) solana.PublicKey {
	return solana.PublicKey(base58.MustDecodeFromString(s))
}

const NativeLoaderAddrStr = "NativeLoader1111111111111111111111111111111"

var NativeLoaderAddr = mustAddr(NativeLoaderAddrStr)

const BpfLoaderUpgradeableAddrStr = "BPFLoaderUpgradeab1e11111111111111111111111"

var BpfLoaderUpgradeableAddr = mustAddr(BpfLoaderUpgradeableAddrStr)

const SystemProgramAddrStr = "11111111111111111111111111111111"

var SystemProgramAddr = mustAddr(SystemProgramAddrStr)

const StakeProgramAddrStr = "Stake11111111111111111111111111111111111111"

var StakeProgramAddr = mustAddr(StakeProgramAddrStr)

const StakeProgramConfigAddrStr = "StakeConfig11111111111111111111111111111111"

var StakeProgramConfigAddr = mustAddr(StakeProgramConfigAddrStr)

const VoteProgramAddrStr = "Vote111111111111111111111111111111111111111"

var VoteProgramAddr = mustAddr(VoteProgramAddrStr)

const TokenProgramAddrStr = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

var TokenProgramAddr = mustAddr(TokenProgramAddrStr)

const TokenMetadataProgramAddrStr = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

var TokenMetadataProgramAddr = mustAddr(TokenMetadataProgramAddrStr)

const SysvarOwnerAddrStr = "Sysvar1111111111111111111111111111111111111"

var SysvarOwnerAddr = mustAddr(SysvarOwnerAddrStr)

var invalidEnumValue = errors.New("invalid enum value")

// ProcessInstructionFn is the entrypoint of a program hosted by the bank.
type ProcessInstructionFn func(execCtx *ExecutionCtx) error

// NativePrograms returns the entrypoints of the builtin programs, keyed by
// program address.
func NativePrograms() map[solana.PublicKey]ProcessInstructionFn {
	return map[solana.PublicKey]ProcessInstructionFn{
		SystemProgramAddr:        SystemProgramExecute,
		StakeProgramAddr:         StakeProgramExecute,
		TokenProgramAddr:         TokenProgramExecute,
		TokenMetadataProgramAddr: TokenMetadataProgramExecute,
	}
}

func verifySigner(authorized solana.PublicKey, signers []solana.PublicKey) error {
	if lo.Contains(signers, authorized) {
		return nil
	}
	return InstrErrMissingRequiredSignature
}
