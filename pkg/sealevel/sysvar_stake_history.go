package sealevel

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

const SysvarStakeHistoryAddrStr = "SysvarStakeHistory1111111111111111111111111"

var SysvarStakeHistoryAddr = mustAddr(SysvarStakeHistoryAddrStr)

// StakeHistoryMaxEntries bounds the number of epochs kept in the sysvar.
const StakeHistoryMaxEntries = 512

type StakeHistoryEntry struct {
	Effective    uint64
	Activating   uint64
	Deactivating uint64
}

type StakeHistoryPair struct {
	Epoch uint64
	Entry StakeHistoryEntry
}

// SysvarStakeHistory is ordered newest epoch first.
type SysvarStakeHistory []StakeHistoryPair

func (sh *SysvarStakeHistory) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	stakeHistoryLen, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read length of SysvarStakeHistory: %w", err)
	}
	if stakeHistoryLen > StakeHistoryMaxEntries {
		return fmt.Errorf("SysvarStakeHistory holds %d entries, more than %d", stakeHistoryLen, StakeHistoryMaxEntries)
	}

	stakeHistory := make(SysvarStakeHistory, 0, stakeHistoryLen)
	for count := uint64(0); count < stakeHistoryLen; count++ {
		var pair StakeHistoryPair

		pair.Epoch, err = decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Epoch when decoding SysvarStakeHistory: %w", err)
		}
		pair.Entry.Effective, err = decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Effective when decoding SysvarStakeHistory: %w", err)
		}
		pair.Entry.Activating, err = decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Activating when decoding SysvarStakeHistory: %w", err)
		}
		pair.Entry.Deactivating, err = decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Deactivating when decoding SysvarStakeHistory: %w", err)
		}

		stakeHistory = append(stakeHistory, pair)
	}

	*sh = stakeHistory
	return nil
}

func (sh *SysvarStakeHistory) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(uint64(len(*sh)), bin.LE)
	if err != nil {
		return err
	}
	for _, pair := range *sh {
		_ = encoder.WriteUint64(pair.Epoch, bin.LE)
		_ = encoder.WriteUint64(pair.Entry.Effective, bin.LE)
		_ = encoder.WriteUint64(pair.Entry.Activating, bin.LE)
		err = encoder.WriteUint64(pair.Entry.Deactivating, bin.LE)
		if err != nil {
			return err
		}
	}
	return nil
}

func (sh *SysvarStakeHistory) Marshal() []byte {
	buf := new(bytes.Buffer)
	_ = sh.MarshalWithEncoder(bin.NewBinEncoder(buf))
	return buf.Bytes()
}

// Update records the stake totals of a finished epoch.
func (sh *SysvarStakeHistory) Update(epoch uint64, entry StakeHistoryEntry) {
	history := append(SysvarStakeHistory{{Epoch: epoch, Entry: entry}}, *sh...)
	if len(history) > StakeHistoryMaxEntries {
		history = history[:StakeHistoryMaxEntries]
	}
	*sh = history
}

func (sh *SysvarStakeHistory) Get(epoch uint64) (StakeHistoryEntry, bool) {
	for _, pair := range *sh {
		if pair.Epoch == epoch {
			return pair.Entry, true
		}
	}
	return StakeHistoryEntry{}, false
}

func checkAcctForStakeHistorySysvar(instrCtx *InstructionCtx, instrAcctIdx uint64) error {
	return checkAcctForSysvar(instrCtx, instrAcctIdx, SysvarStakeHistoryAddr)
}
