package sealevel

import (
	"encoding/binary"
	"errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.firedancer.io/singlepool/pkg/features"
	"go.firedancer.io/singlepool/pkg/safemath"
	"k8s.io/klog/v2"
)

const (
	StakeProgramInstrTypeInitialize = iota
	StakeProgramInstrTypeAuthorize
	StakeProgramInstrTypeDelegateStake
	StakeProgramInstrTypeSplit
	StakeProgramInstrTypeWithdraw
	StakeProgramInstrTypeDeactivate
	StakeProgramInstrTypeSetLockup
	StakeProgramInstrTypeMerge
	StakeProgramInstrTypeAuthorizeWithSeed
	StakeProgramInstrTypeInitializeChecked
	StakeProgramInstrTypeAuthorizeChecked
	StakeProgramInstrTypeAuthorizeCheckedWithSeed
	StakeProgramInstrTypeSetLockupChecked
	StakeProgramInstrTypeGetMinimumDelegation
)

const LamportsPerSol = 1_000_000_000

const NewWarmupCooldownRate = 0.09

// stake errors
var (
	StakeErrCustodianMissing          = errors.New("StakeErrCustodianMissing")
	StakeErrCustodianSignatureMissing = errors.New("StakeErrCustodianSignatureMissing")
	StakeErrLockupInForce             = errors.New("StakeErrLockupInForce")
	StakeErrInsufficientDelegation    = errors.New("StakeErrInsufficientDelegation")
	StakeErrInsufficientStake         = errors.New("StakeErrInsufficientStake")
	StakeErrTooSoonToRedelegate       = errors.New("StakeErrTooSoonToRedelegate")
	StakeErrAlreadyDeactivated        = errors.New("StakeErrAlreadyDeactivated")
	StakeErrMergeTransientStake       = errors.New("StakeErrMergeTransientStake")
	StakeErrMergeMismatch             = errors.New("StakeErrMergeMismatch")
)

type StakeInstrInitialize struct {
	Authorized Authorized
	Lockup     StakeLockup
}

type StakeInstrAuthorize struct {
	Pubkey         solana.PublicKey
	StakeAuthorize uint32
}

type StakeInstrSplit struct {
	Lamports uint64
}

type StakeInstrWithdraw struct {
	Lamports uint64
}

func (initialize *StakeInstrInitialize) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := initialize.Authorized.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}
	return initialize.Lockup.UnmarshalWithDecoder(decoder)
}

func (initialize *StakeInstrInitialize) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(StakeProgramInstrTypeInitialize, bin.LE)
	_ = initialize.Authorized.MarshalWithEncoder(encoder)
	return initialize.Lockup.MarshalWithEncoder(encoder)
}

func (auth *StakeInstrAuthorize) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(auth.Pubkey[:], pk)

	auth.StakeAuthorize, err = decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}

	if auth.StakeAuthorize != StakeAuthorizeStaker && auth.StakeAuthorize != StakeAuthorizeWithdrawer {
		return invalidEnumValue
	}
	return nil
}

func (auth *StakeInstrAuthorize) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(StakeProgramInstrTypeAuthorize, bin.LE)
	_ = encoder.WriteBytes(auth.Pubkey[:], false)
	return encoder.WriteUint32(auth.StakeAuthorize, bin.LE)
}

func (split *StakeInstrSplit) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	split.Lamports, err = decoder.ReadUint64(bin.LE)
	return err
}

func (split *StakeInstrSplit) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(StakeProgramInstrTypeSplit, bin.LE)
	return encoder.WriteUint64(split.Lamports, bin.LE)
}

func (withdraw *StakeInstrWithdraw) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	withdraw.Lamports, err = decoder.ReadUint64(bin.LE)
	return err
}

func (withdraw *StakeInstrWithdraw) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(StakeProgramInstrTypeWithdraw, bin.LE)
	return encoder.WriteUint64(withdraw.Lamports, bin.LE)
}

func stakeInstrTag(instrType uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, instrType)
}

func NewStakeInitializeInstruction(stakeAcct solana.PublicKey, authorized Authorized, lockup StakeLockup) Instruction {
	instr := StakeInstrInitialize{Authorized: authorized, Lockup: lockup}
	return Instruction{
		Accounts:  []AccountMeta{WritableMeta(stakeAcct), ReadonlyMeta(SysvarRentAddr)},
		Data:      encodeInstrData(&instr),
		ProgramId: StakeProgramAddr,
	}
}

func NewStakeInitializeCheckedInstruction(stakeAcct solana.PublicKey, authorized Authorized) Instruction {
	return Instruction{
		Accounts: []AccountMeta{
			WritableMeta(stakeAcct),
			ReadonlyMeta(SysvarRentAddr),
			ReadonlyMeta(authorized.Staker),
			ReadonlySignerMeta(authorized.Withdrawer),
		},
		Data:      stakeInstrTag(StakeProgramInstrTypeInitializeChecked),
		ProgramId: StakeProgramAddr,
	}
}

func NewStakeAuthorizeInstruction(stakeAcct solana.PublicKey, authority solana.PublicKey, newAuthority solana.PublicKey, stakeAuthorize uint32) Instruction {
	instr := StakeInstrAuthorize{Pubkey: newAuthority, StakeAuthorize: stakeAuthorize}
	return Instruction{
		Accounts: []AccountMeta{
			WritableMeta(stakeAcct),
			ReadonlyMeta(SysvarClockAddr),
			ReadonlySignerMeta(authority),
		},
		Data:      encodeInstrData(&instr),
		ProgramId: StakeProgramAddr,
	}
}

func NewStakeDelegateInstruction(stakeAcct solana.PublicKey, staker solana.PublicKey, voteAcct solana.PublicKey) Instruction {
	return Instruction{
		Accounts: []AccountMeta{
			WritableMeta(stakeAcct),
			ReadonlyMeta(voteAcct),
			ReadonlyMeta(SysvarClockAddr),
			ReadonlyMeta(SysvarStakeHistoryAddr),
			ReadonlyMeta(StakeProgramConfigAddr),
			ReadonlySignerMeta(staker),
		},
		Data:      stakeInstrTag(StakeProgramInstrTypeDelegateStake),
		ProgramId: StakeProgramAddr,
	}
}

func NewStakeSplitInstruction(stakeAcct solana.PublicKey, staker solana.PublicKey, lamports uint64, splitAcct solana.PublicKey) Instruction {
	instr := StakeInstrSplit{Lamports: lamports}
	return Instruction{
		Accounts: []AccountMeta{
			WritableMeta(stakeAcct),
			WritableMeta(splitAcct),
			ReadonlySignerMeta(staker),
		},
		Data:      encodeInstrData(&instr),
		ProgramId: StakeProgramAddr,
	}
}

func NewStakeWithdrawInstruction(stakeAcct solana.PublicKey, withdrawer solana.PublicKey, to solana.PublicKey, lamports uint64) Instruction {
	instr := StakeInstrWithdraw{Lamports: lamports}
	return Instruction{
		Accounts: []AccountMeta{
			WritableMeta(stakeAcct),
			WritableMeta(to),
			ReadonlyMeta(SysvarClockAddr),
			ReadonlyMeta(SysvarStakeHistoryAddr),
			ReadonlySignerMeta(withdrawer),
		},
		Data:      encodeInstrData(&instr),
		ProgramId: StakeProgramAddr,
	}
}

func NewStakeDeactivateInstruction(stakeAcct solana.PublicKey, staker solana.PublicKey) Instruction {
	return Instruction{
		Accounts: []AccountMeta{
			WritableMeta(stakeAcct),
			ReadonlyMeta(SysvarClockAddr),
			ReadonlySignerMeta(staker),
		},
		Data:      stakeInstrTag(StakeProgramInstrTypeDeactivate),
		ProgramId: StakeProgramAddr,
	}
}

func NewStakeMergeInstruction(destination solana.PublicKey, source solana.PublicKey, staker solana.PublicKey) Instruction {
	return Instruction{
		Accounts: []AccountMeta{
			WritableMeta(destination),
			WritableMeta(source),
			ReadonlyMeta(SysvarClockAddr),
			ReadonlyMeta(SysvarStakeHistoryAddr),
			ReadonlySignerMeta(staker),
		},
		Data:      stakeInstrTag(StakeProgramInstrTypeMerge),
		ProgramId: StakeProgramAddr,
	}
}

func NewStakeGetMinimumDelegationInstruction() Instruction {
	return Instruction{
		Data:      stakeInstrTag(StakeProgramInstrTypeGetMinimumDelegation),
		ProgramId: StakeProgramAddr,
	}
}

func getOptionalPubkey(instrCtx *InstructionCtx, instrAcctIdx uint64, mustBeSigner bool) (*solana.PublicKey, error) {
	if instrAcctIdx >= instrCtx.NumberOfInstructionAccounts() {
		return nil, nil
	}
	if mustBeSigner {
		isSigner, err := instrCtx.IsInstructionAccountSigner(instrAcctIdx)
		if err != nil {
			return nil, err
		}
		if !isSigner {
			return nil, InstrErrMissingRequiredSignature
		}
	}
	pk, err := instrCtx.KeyOfAccountAtIndex(instrAcctIdx)
	if err != nil {
		return nil, err
	}
	return &pk, nil
}

func StakeProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUStakeProgramDefaultComputeUnits)
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

	if instructionType == StakeProgramInstrTypeGetMinimumDelegation {
		minimumDelegation := binary.LittleEndian.AppendUint64(nil, determineMinimumDelegation(execCtx.Features))
		return execCtx.TransactionContext.SetReturnData(StakeProgramAddr, minimumDelegation)
	}

	// every other instruction operates on the stake account at index 0
	err = instrCtx.CheckNumOfInstructionAccounts(1)
	if err != nil {
		return err
	}
	stakeAcct, err := instrCtx.BorrowInstructionAccount(0)
	if err != nil {
		return err
	}
	if stakeAcct.Owner() != StakeProgramAddr {
		return InstrErrInvalidAccountOwner
	}

	signers := instrCtx.Signers()
	sysvars := &execCtx.SysvarCache
	f := execCtx.Features

	switch instructionType {
	case StakeProgramInstrTypeInitialize:
		{
			var initialize StakeInstrInitialize
			err = initialize.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			err = checkAcctForRentSysvar(instrCtx, 1)
			if err != nil {
				return err
			}
			return StakeProgramInitialize(stakeAcct, initialize.Authorized, initialize.Lockup, sysvars.GetRent(), f)
		}

	case StakeProgramInstrTypeInitializeChecked:
		{
			err = instrCtx.CheckNumOfInstructionAccounts(4)
			if err != nil {
				return err
			}
			err = checkAcctForRentSysvar(instrCtx, 1)
			if err != nil {
				return err
			}
			staker, err := instrCtx.KeyOfAccountAtIndex(2)
			if err != nil {
				return err
			}
			withdrawer, err := instrCtx.KeyOfAccountAtIndex(3)
			if err != nil {
				return err
			}
			isSigner, err := instrCtx.IsInstructionAccountSigner(3)
			if err != nil {
				return err
			}
			if !isSigner {
				return InstrErrMissingRequiredSignature
			}
			authorized := Authorized{Staker: staker, Withdrawer: withdrawer}
			return StakeProgramInitialize(stakeAcct, authorized, StakeLockup{}, sysvars.GetRent(), f)
		}

	case StakeProgramInstrTypeAuthorize:
		{
			var authorize StakeInstrAuthorize
			err = authorize.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			err = instrCtx.CheckNumOfInstructionAccounts(3)
			if err != nil {
				return err
			}
			err = checkAcctForClockSysvar(instrCtx, 1)
			if err != nil {
				return err
			}
			custodian, err := getOptionalPubkey(instrCtx, 3, false)
			if err != nil {
				return err
			}
			return StakeProgramAuthorize(stakeAcct, signers, authorize.Pubkey, authorize.StakeAuthorize, sysvars.GetClock(), custodian)
		}

	case StakeProgramInstrTypeDelegateStake:
		{
			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}
			err = checkAcctForClockSysvar(instrCtx, 2)
			if err != nil {
				return err
			}
			err = checkAcctForStakeHistorySysvar(instrCtx, 3)
			if err != nil {
				return err
			}
			err = instrCtx.CheckNumOfInstructionAccounts(5)
			if err != nil {
				return err
			}
			voteAcct, err := instrCtx.BorrowInstructionAccount(1)
			if err != nil {
				return err
			}
			return StakeProgramDelegate(stakeAcct, voteAcct, sysvars.GetClock(), signers, f)
		}

	case StakeProgramInstrTypeSplit:
		{
			var split StakeInstrSplit
			err = split.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}
			splitAcct, err := instrCtx.BorrowInstructionAccount(1)
			if err != nil {
				return err
			}
			return StakeProgramSplit(stakeAcct, splitAcct, split.Lamports, signers, sysvars, f)
		}

	case StakeProgramInstrTypeWithdraw:
		{
			var withdraw StakeInstrWithdraw
			err = withdraw.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}
			err = checkAcctForClockSysvar(instrCtx, 2)
			if err != nil {
				return err
			}
			err = checkAcctForStakeHistorySysvar(instrCtx, 3)
			if err != nil {
				return err
			}
			err = instrCtx.CheckNumOfInstructionAccounts(5)
			if err != nil {
				return err
			}
			custodian, err := getOptionalPubkey(instrCtx, 5, true)
			if err != nil {
				return err
			}
			toAcct, err := instrCtx.BorrowInstructionAccount(1)
			if err != nil {
				return err
			}
			return StakeProgramWithdraw(stakeAcct, toAcct, withdraw.Lamports, signers, sysvars.GetClock(), custodian)
		}

	case StakeProgramInstrTypeDeactivate:
		{
			err = checkAcctForClockSysvar(instrCtx, 1)
			if err != nil {
				return err
			}
			return StakeProgramDeactivate(stakeAcct, sysvars.GetClock(), signers)
		}

	case StakeProgramInstrTypeMerge:
		{
			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}
			err = checkAcctForClockSysvar(instrCtx, 2)
			if err != nil {
				return err
			}
			err = checkAcctForStakeHistorySysvar(instrCtx, 3)
			if err != nil {
				return err
			}
			sourceAcct, err := instrCtx.BorrowInstructionAccount(1)
			if err != nil {
				return err
			}
			return StakeProgramMerge(stakeAcct, sourceAcct, sysvars.GetClock(), signers)
		}
	}

	klog.Errorf("unsupported stake instruction %d", instructionType)
	return InstrErrInvalidInstructionData
}

func determineMinimumDelegation(f *features.Features) uint64 {
	if f != nil && f.IsActive(features.StakeRaiseMinimumDelegationTo1Sol) {
		return LamportsPerSol
	}
	return 1
}

func warmupCooldownRate(f *features.Features) float64 {
	if f != nil && f.IsActive(features.ReduceStakeWarmupCooldown) {
		return NewWarmupCooldownRate
	}
	return DefaultWarmupCooldownRate
}

func StakeProgramInitialize(stakeAcct *BorrowedAccount, authorized Authorized, lockup StakeLockup, rent *SysvarRent, f *features.Features) error {
	if len(stakeAcct.Data()) != StakeStateV2Size {
		return InstrErrInvalidAccountData
	}

	state, err := getStakeAccountState(stakeAcct)
	if err != nil {
		return err
	}
	if state.Status != StakeStateV2StatusUninitialized {
		return InstrErrInvalidAccountData
	}

	rentExemptReserve := rent.MinimumBalance(uint64(len(stakeAcct.Data())))
	if stakeAcct.Lamports() < rentExemptReserve {
		klog.Errorf("Initialize: stake account %s has %d lamports, needs %d", stakeAcct.Key(), stakeAcct.Lamports(), rentExemptReserve)
		return InstrErrInsufficientFunds
	}

	newState := StakeStateV2{
		Status: StakeStateV2StatusInitialized,
		Initialized: StakeStateV2Initialized{Meta: Meta{
			RentExemptReserve: rentExemptReserve,
			Authorized:        authorized,
			Lockup:            lockup,
		}},
	}
	return setStakeAccountState(stakeAcct, &newState)
}

func StakeProgramAuthorize(stakeAcct *BorrowedAccount, signers []solana.PublicKey, newAuthority solana.PublicKey, stakeAuthorize uint32, clock *SysvarClock, custodian *solana.PublicKey) error {
	state, err := getStakeAccountState(stakeAcct)
	if err != nil {
		return err
	}

	meta, ok := state.Meta()
	if !ok {
		return InstrErrInvalidAccountData
	}

	err = meta.Authorized.Authorize(signers, newAuthority, stakeAuthorize, &meta.Lockup, clock, custodian)
	if err != nil {
		return err
	}

	return setStakeAccountState(stakeAcct, state)
}

func StakeProgramDelegate(stakeAcct *BorrowedAccount, voteAcct *BorrowedAccount, clock *SysvarClock, signers []solana.PublicKey, f *features.Features) error {
	if voteAcct.Owner() != VoteProgramAddr {
		return InstrErrIncorrectProgramId
	}
	_, err := unmarshalVoteStateHeader(voteAcct.Data())
	if err != nil {
		return InstrErrInvalidAccountData
	}

	state, err := getStakeAccountState(stakeAcct)
	if err != nil {
		return err
	}

	switch state.Status {
	case StakeStateV2StatusInitialized:
		{
			meta := state.Initialized.Meta
			err = meta.Authorized.Check(signers, StakeAuthorizeStaker)
			if err != nil {
				return err
			}
			stakeAmount, err := validateAndReturnDelegatedAmount(stakeAcct, &meta, f)
			if err != nil {
				return err
			}
			delegation := newDelegation(voteAcct.Key(), stakeAmount, clock.Epoch)
			delegation.WarmupCooldownRate = warmupCooldownRate(f)

			newState := StakeStateV2{
				Status: StakeStateV2StatusStake,
				Stake: StakeStateV2Stake{
					Meta:  meta,
					Stake: Stake{Delegation: delegation},
				},
			}
			return setStakeAccountState(stakeAcct, &newState)
		}

	case StakeStateV2StatusStake:
		{
			meta := state.Stake.Meta
			err = meta.Authorized.Check(signers, StakeAuthorizeStaker)
			if err != nil {
				return err
			}
			stakeAmount, err := validateAndReturnDelegatedAmount(stakeAcct, &meta, f)
			if err != nil {
				return err
			}

			stake := &state.Stake.Stake
			if stake.Delegation.EffectiveStake(clock.Epoch) != 0 || !stake.Delegation.IsDeactivating() {
				// only fully deactivated stake may be delegated again
				if stake.Delegation.VoterPubkey == voteAcct.Key() && clock.Epoch == stake.Delegation.DeactivationEpoch {
					stake.Delegation.DeactivationEpoch = newDelegation(solana.PublicKey{}, 0, 0).DeactivationEpoch
					return setStakeAccountState(stakeAcct, state)
				}
				return StakeErrTooSoonToRedelegate
			}

			stake.Delegation = newDelegation(voteAcct.Key(), stakeAmount, clock.Epoch)
			stake.Delegation.WarmupCooldownRate = warmupCooldownRate(f)
			stake.CreditsObserved = 0
			return setStakeAccountState(stakeAcct, state)
		}
	}

	return InstrErrInvalidAccountData
}

func validateAndReturnDelegatedAmount(stakeAcct *BorrowedAccount, meta *Meta, f *features.Features) (uint64, error) {
	stakeAmount := safemath.SaturatingSubU64(stakeAcct.Lamports(), meta.RentExemptReserve)
	if stakeAmount < determineMinimumDelegation(f) {
		return 0, StakeErrInsufficientDelegation
	}
	return stakeAmount, nil
}

func StakeProgramDeactivate(stakeAcct *BorrowedAccount, clock *SysvarClock, signers []solana.PublicKey) error {
	state, err := getStakeAccountState(stakeAcct)
	if err != nil {
		return err
	}
	if state.Status != StakeStateV2StatusStake {
		return InstrErrInvalidAccountData
	}

	err = state.Stake.Meta.Authorized.Check(signers, StakeAuthorizeStaker)
	if err != nil {
		return err
	}

	delegation := &state.Stake.Stake.Delegation
	if delegation.IsDeactivating() {
		return StakeErrAlreadyDeactivated
	}
	delegation.DeactivationEpoch = clock.Epoch

	return setStakeAccountState(stakeAcct, state)
}

func StakeProgramWithdraw(stakeAcct *BorrowedAccount, toAcct *BorrowedAccount, lamports uint64, signers []solana.PublicKey, clock *SysvarClock, custodian *solana.PublicKey) error {
	state, err := getStakeAccountState(stakeAcct)
	if err != nil {
		return err
	}

	var lockup StakeLockup
	var reserve uint64
	var isStaked bool

	switch state.Status {
	case StakeStateV2StatusStake:
		{
			meta := state.Stake.Meta
			err = meta.Authorized.Check(signers, StakeAuthorizeWithdrawer)
			if err != nil {
				return err
			}

			delegation := state.Stake.Stake.Delegation
			var staked uint64
			if clock.Epoch >= delegation.DeactivationEpoch {
				staked = delegation.EffectiveStake(clock.Epoch)
			} else {
				staked = delegation.Stake
			}

			reserve, err = safemath.CheckedAddU64(staked, meta.RentExemptReserve)
			if err != nil {
				return InstrErrInsufficientFunds
			}
			lockup = meta.Lockup
			isStaked = staked != 0
		}

	case StakeStateV2StatusInitialized:
		{
			meta := state.Initialized.Meta
			err = meta.Authorized.Check(signers, StakeAuthorizeWithdrawer)
			if err != nil {
				return err
			}
			lockup = meta.Lockup
			reserve = meta.RentExemptReserve
		}

	case StakeStateV2StatusUninitialized:
		{
			if verifySigner(stakeAcct.Key(), signers) != nil {
				return InstrErrMissingRequiredSignature
			}
		}

	default:
		return InstrErrInvalidAccountData
	}

	if lockup.IsInForce(clock, custodian) {
		return StakeErrLockupInForce
	}

	lamportsAndReserve, err := safemath.CheckedAddU64(lamports, reserve)
	if err != nil {
		return InstrErrInsufficientFunds
	}

	// "if the stake is active, we mustn't allow the account to go away"
	if isStaked && lamportsAndReserve > stakeAcct.Lamports() {
		return InstrErrInsufficientFunds
	}

	if lamports != stakeAcct.Lamports() && lamportsAndReserve > stakeAcct.Lamports() {
		return InstrErrInsufficientFunds
	}

	if lamports == stakeAcct.Lamports() {
		err = setStakeAccountState(stakeAcct, &StakeStateV2{Status: StakeStateV2StatusUninitialized})
		if err != nil {
			return err
		}
	}

	err = stakeAcct.CheckedSubLamports(lamports)
	if err != nil {
		return err
	}
	return toAcct.CheckedAddLamports(lamports)
}

type validatedSplitInfo struct {
	sourceRemainingBalance       uint64
	destinationRentExemptReserve uint64
}

func validateSplitAmount(sourceAcct *BorrowedAccount, destAcct *BorrowedAccount, lamports uint64, sourceMeta *Meta, additionalRequiredLamports uint64, sourceIsActive bool, rent *SysvarRent) (*validatedSplitInfo, error) {
	sourceLamports := sourceAcct.Lamports()
	destLamports := destAcct.Lamports()

	if lamports == 0 {
		return nil, InstrErrInsufficientFunds
	}
	if lamports > sourceLamports {
		return nil, InstrErrInsufficientFunds
	}

	sourceMinimumBalance := safemath.SaturatingAddU64(sourceMeta.RentExemptReserve, additionalRequiredLamports)
	sourceRemainingBalance := safemath.SaturatingSubU64(sourceLamports, lamports)
	if sourceRemainingBalance != 0 && sourceRemainingBalance < sourceMinimumBalance {
		return nil, InstrErrInsufficientFunds
	}

	destRentExemptReserve := rent.MinimumBalance(uint64(len(destAcct.Data())))
	if sourceIsActive && sourceRemainingBalance != 0 && destLamports < destRentExemptReserve {
		return nil, InstrErrInsufficientFunds
	}

	destMinimumBalance := safemath.SaturatingAddU64(destRentExemptReserve, additionalRequiredLamports)
	destBalanceDeficit := safemath.SaturatingSubU64(destMinimumBalance, destLamports)
	if lamports < destBalanceDeficit {
		return nil, InstrErrInsufficientFunds
	}

	return &validatedSplitInfo{sourceRemainingBalance: sourceRemainingBalance, destinationRentExemptReserve: destRentExemptReserve}, nil
}

func StakeProgramSplit(stakeAcct *BorrowedAccount, splitAcct *BorrowedAccount, lamports uint64, signers []solana.PublicKey, sysvars *SysvarCache, f *features.Features) error {
	if splitAcct.Owner() != StakeProgramAddr {
		return InstrErrIncorrectProgramId
	}
	if len(splitAcct.Data()) != StakeStateV2Size {
		return InstrErrInvalidAccountData
	}
	if stakeAcct.Key() == splitAcct.Key() {
		return InstrErrInvalidArgument
	}

	splitState, err := getStakeAccountState(splitAcct)
	if err != nil {
		return err
	}
	if splitState.Status != StakeStateV2StatusUninitialized {
		return InstrErrInvalidAccountData
	}

	if lamports > stakeAcct.Lamports() {
		return InstrErrInsufficientFunds
	}

	state, err := getStakeAccountState(stakeAcct)
	if err != nil {
		return err
	}

	switch state.Status {
	case StakeStateV2StatusStake:
		{
			meta := state.Stake.Meta
			err = meta.Authorized.Check(signers, StakeAuthorizeStaker)
			if err != nil {
				return err
			}

			minimumDelegation := determineMinimumDelegation(f)
			isActive := false
			if f != nil && f.IsActive(features.RequireRentExemptSplitDestination) {
				isActive = state.Stake.Stake.Delegation.EffectiveStake(sysvars.Clock.Epoch) > 0
			}

			splitInfo, err := validateSplitAmount(stakeAcct, splitAcct, lamports, &meta, minimumDelegation, isActive, sysvars.GetRent())
			if err != nil {
				return err
			}

			var remainingStakeDelta, splitStakeAmount uint64
			if splitInfo.sourceRemainingBalance == 0 {
				// the whole balance moves, but the source's reserve stays out of the stake
				remainingStakeDelta = safemath.SaturatingSubU64(lamports, meta.RentExemptReserve)
				splitStakeAmount = remainingStakeDelta
			} else {
				if safemath.SaturatingSubU64(state.Stake.Stake.Delegation.Stake, lamports) < minimumDelegation {
					return StakeErrInsufficientDelegation
				}
				remainingStakeDelta = lamports
				splitStakeAmount = safemath.SaturatingSubU64(lamports,
					safemath.SaturatingSubU64(splitInfo.destinationRentExemptReserve, splitAcct.Lamports()))
			}

			if splitStakeAmount < minimumDelegation {
				return StakeErrInsufficientDelegation
			}

			stake := &state.Stake.Stake
			if remainingStakeDelta > stake.Delegation.Stake {
				return StakeErrInsufficientStake
			}
			stake.Delegation.Stake -= remainingStakeDelta

			splitStake := *stake
			splitStake.Delegation.Stake = splitStakeAmount

			splitMeta := meta
			splitMeta.RentExemptReserve = splitInfo.destinationRentExemptReserve

			err = setStakeAccountState(stakeAcct, state)
			if err != nil {
				return err
			}
			err = setStakeAccountState(splitAcct, &StakeStateV2{
				Status: StakeStateV2StatusStake,
				Stake:  StakeStateV2Stake{Meta: splitMeta, Stake: splitStake, StakeFlags: state.Stake.StakeFlags},
			})
			if err != nil {
				return err
			}
		}

	case StakeStateV2StatusInitialized:
		{
			meta := state.Initialized.Meta
			err = meta.Authorized.Check(signers, StakeAuthorizeStaker)
			if err != nil {
				return err
			}

			splitInfo, err := validateSplitAmount(stakeAcct, splitAcct, lamports, &meta, 0, false, sysvars.GetRent())
			if err != nil {
				return err
			}

			splitMeta := meta
			splitMeta.RentExemptReserve = splitInfo.destinationRentExemptReserve
			err = setStakeAccountState(splitAcct, &StakeStateV2{
				Status:      StakeStateV2StatusInitialized,
				Initialized: StakeStateV2Initialized{Meta: splitMeta},
			})
			if err != nil {
				return err
			}
		}

	case StakeStateV2StatusUninitialized:
		{
			if verifySigner(stakeAcct.Key(), signers) != nil {
				return InstrErrMissingRequiredSignature
			}
		}

	default:
		return InstrErrInvalidAccountData
	}

	// deinitialize state upon zero balance
	if lamports == stakeAcct.Lamports() {
		err = setStakeAccountState(stakeAcct, &StakeStateV2{Status: StakeStateV2StatusUninitialized})
		if err != nil {
			return err
		}
	}

	err = stakeAcct.CheckedSubLamports(lamports)
	if err != nil {
		return err
	}
	return splitAcct.CheckedAddLamports(lamports)
}

const (
	mergeKindInactive = iota
	mergeKindActivationEpoch
	mergeKindFullyActive
)

type mergeKind struct {
	kind     int
	meta     Meta
	stake    Stake
	lamports uint64
	flags    StakeFlags
}

func getMergeKind(state *StakeStateV2, lamports uint64, clock *SysvarClock) (*mergeKind, error) {
	switch state.Status {
	case StakeStateV2StatusInitialized:
		return &mergeKind{kind: mergeKindInactive, meta: state.Initialized.Meta, lamports: lamports}, nil

	case StakeStateV2StatusStake:
		delegation := state.Stake.Stake.Delegation
		mk := &mergeKind{meta: state.Stake.Meta, stake: state.Stake.Stake, lamports: lamports, flags: state.Stake.StakeFlags}

		switch {
		case delegation.IsDeactivating() && (clock.Epoch > delegation.DeactivationEpoch || delegation.ActivationEpoch == delegation.DeactivationEpoch):
			mk.kind = mergeKindInactive
		case delegation.IsDeactivating():
			return nil, StakeErrMergeTransientStake
		case clock.Epoch <= delegation.ActivationEpoch:
			mk.kind = mergeKindActivationEpoch
		default:
			mk.kind = mergeKindFullyActive
		}
		return mk, nil
	}

	return nil, InstrErrInvalidAccountData
}

func metasCanMerge(dest *Meta, source *Meta, clock *SysvarClock) error {
	canMergeLockups := dest.Lockup == source.Lockup ||
		(!dest.Lockup.IsInForce(clock, nil) && !source.Lockup.IsInForce(clock, nil))

	if dest.Authorized == source.Authorized && canMergeLockups {
		return nil
	}
	klog.Errorf("Unable to merge due to metadata mismatch")
	return StakeErrMergeMismatch
}

func activeStakesCanMerge(dest *Stake, source *Stake) error {
	if dest.Delegation.VoterPubkey != source.Delegation.VoterPubkey {
		klog.Errorf("Unable to merge due to voter mismatch")
		return StakeErrMergeMismatch
	}
	if dest.Delegation.IsDeactivating() || source.Delegation.IsDeactivating() {
		klog.Errorf("Unable to merge due to stake deactivation")
		return StakeErrMergeMismatch
	}
	return nil
}

// mergeDelegationStakeAndCreditsObserved absorbs lamports into stake,
// weighting the credits observed by stake so that rewards are not gained or
// lost through the merge.
func mergeDelegationStakeAndCreditsObserved(stake *Stake, absorbedLamports uint64, absorbedCreditsObserved uint64) error {
	if stake.CreditsObserved != absorbedCreditsObserved {
		totalStake := new(uint256.Int).AddUint64(uint256.NewInt(stake.Delegation.Stake), absorbedLamports)
		if totalStake.IsZero() {
			return InstrErrArithmeticOverflow
		}

		weighted := new(uint256.Int).Mul(uint256.NewInt(stake.Delegation.Stake), uint256.NewInt(stake.CreditsObserved))
		absorbed := new(uint256.Int).Mul(uint256.NewInt(absorbedLamports), uint256.NewInt(absorbedCreditsObserved))
		weighted.Add(weighted, absorbed)

		// ceiling division
		weighted.Add(weighted, totalStake)
		weighted.SubUint64(weighted, 1)
		weighted.Div(weighted, totalStake)
		if !weighted.IsUint64() {
			return InstrErrArithmeticOverflow
		}
		stake.CreditsObserved = weighted.Uint64()
	}

	newStake, err := safemath.CheckedAddU64(stake.Delegation.Stake, absorbedLamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	stake.Delegation.Stake = newStake
	return nil
}

func (dest *mergeKind) merge(source *mergeKind, clock *SysvarClock) (*StakeStateV2, error) {
	err := metasCanMerge(&dest.meta, &source.meta, clock)
	if err != nil {
		return nil, err
	}

	if dest.kind != mergeKindInactive && source.kind != mergeKindInactive {
		err = activeStakesCanMerge(&dest.stake, &source.stake)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case dest.kind == mergeKindInactive && (source.kind == mergeKindInactive || source.kind == mergeKindActivationEpoch):
		return nil, nil

	case dest.kind == mergeKindActivationEpoch && source.kind == mergeKindInactive:
		stake := dest.stake
		newStake, err := safemath.CheckedAddU64(stake.Delegation.Stake, source.lamports)
		if err != nil {
			return nil, InstrErrArithmeticOverflow
		}
		stake.Delegation.Stake = newStake
		return &StakeStateV2{
			Status: StakeStateV2StatusStake,
			Stake:  StakeStateV2Stake{Meta: dest.meta, Stake: stake, StakeFlags: StakeFlags{Bits: dest.flags.Bits | source.flags.Bits}},
		}, nil

	case dest.kind == mergeKindActivationEpoch && source.kind == mergeKindActivationEpoch:
		stake := dest.stake
		sourceLamports, err := safemath.CheckedAddU64(source.meta.RentExemptReserve, source.stake.Delegation.Stake)
		if err != nil {
			return nil, InstrErrArithmeticOverflow
		}
		err = mergeDelegationStakeAndCreditsObserved(&stake, sourceLamports, source.stake.CreditsObserved)
		if err != nil {
			return nil, err
		}
		return &StakeStateV2{
			Status: StakeStateV2StatusStake,
			Stake:  StakeStateV2Stake{Meta: dest.meta, Stake: stake, StakeFlags: StakeFlags{Bits: dest.flags.Bits | source.flags.Bits}},
		}, nil

	case dest.kind == mergeKindFullyActive && source.kind == mergeKindFullyActive:
		stake := dest.stake
		err = mergeDelegationStakeAndCreditsObserved(&stake, source.stake.Delegation.Stake, source.stake.CreditsObserved)
		if err != nil {
			return nil, err
		}
		return &StakeStateV2{
			Status: StakeStateV2StatusStake,
			Stake:  StakeStateV2Stake{Meta: dest.meta, Stake: stake},
		}, nil
	}

	klog.Errorf("Unable to merge stake of kind %d into kind %d", source.kind, dest.kind)
	return nil, StakeErrMergeMismatch
}

func StakeProgramMerge(stakeAcct *BorrowedAccount, sourceAcct *BorrowedAccount, clock *SysvarClock, signers []solana.PublicKey) error {
	if sourceAcct.Owner() != StakeProgramAddr {
		return InstrErrIncorrectProgramId
	}
	if stakeAcct.Key() == sourceAcct.Key() {
		return InstrErrInvalidArgument
	}

	state, err := getStakeAccountState(stakeAcct)
	if err != nil {
		return err
	}
	destMergeKind, err := getMergeKind(state, stakeAcct.Lamports(), clock)
	if err != nil {
		return err
	}

	err = destMergeKind.meta.Authorized.Check(signers, StakeAuthorizeStaker)
	if err != nil {
		return err
	}

	sourceState, err := getStakeAccountState(sourceAcct)
	if err != nil {
		return err
	}
	sourceMergeKind, err := getMergeKind(sourceState, sourceAcct.Lamports(), clock)
	if err != nil {
		return err
	}

	mergedState, err := destMergeKind.merge(sourceMergeKind, clock)
	if err != nil {
		return err
	}
	if mergedState != nil {
		err = setStakeAccountState(stakeAcct, mergedState)
		if err != nil {
			return err
		}
	}

	err = setStakeAccountState(sourceAcct, &StakeStateV2{Status: StakeStateV2StatusUninitialized})
	if err != nil {
		return err
	}

	lamports := sourceAcct.Lamports()
	err = sourceAcct.CheckedSubLamports(lamports)
	if err != nil {
		return err
	}
	return stakeAcct.CheckedAddLamports(lamports)
}
