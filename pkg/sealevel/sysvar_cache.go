package sealevel

import (
	"github.com/gagliardetto/solana-go"
)

// SysvarCache is the runtime's view of the sysvars for the slot being
// executed. Builtin programs read sysvars from here rather than from account
// data, but still require the sysvar account to be passed where the real
// programs do.
type SysvarCache struct {
	Rent         SysvarRent
	Clock        SysvarClock
	StakeHistory SysvarStakeHistory
}

func (sc *SysvarCache) GetRent() *SysvarRent {
	return &sc.Rent
}

func (sc *SysvarCache) GetClock() *SysvarClock {
	return &sc.Clock
}

func (sc *SysvarCache) GetStakeHistory() *SysvarStakeHistory {
	return &sc.StakeHistory
}

func checkAcctForSysvar(instrCtx *InstructionCtx, instrAcctIdx uint64, sysvar solana.PublicKey) error {
	key, err := instrCtx.KeyOfAccountAtIndex(instrAcctIdx)
	if err != nil {
		return err
	}
	if key != sysvar {
		return InstrErrInvalidArgument
	}
	return nil
}

func checkAcctForClockSysvar(instrCtx *InstructionCtx, instrAcctIdx uint64) error {
	return checkAcctForSysvar(instrCtx, instrAcctIdx, SysvarClockAddr)
}

func checkAcctForRentSysvar(instrCtx *InstructionCtx, instrAcctIdx uint64) error {
	return checkAcctForSysvar(instrCtx, instrAcctIdx, SysvarRentAddr)
}
