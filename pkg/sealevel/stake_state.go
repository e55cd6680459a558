package sealevel

import (
	"bytes"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const StakeStateV2Size = 200

const DefaultWarmupCooldownRate = 0.25

type Authorized struct {
	Staker     solana.PublicKey
	Withdrawer solana.PublicKey
}

type StakeLockup struct {
	UnixTimestamp int64
	Epoch         uint64
	Custodian     solana.PublicKey
}

type Meta struct {
	RentExemptReserve uint64
	Authorized        Authorized
	Lockup            StakeLockup
}

type Delegation struct {
	VoterPubkey        solana.PublicKey
	Stake              uint64
	ActivationEpoch    uint64
	DeactivationEpoch  uint64
	WarmupCooldownRate float64
}

type StakeFlags struct {
	Bits byte
}

type Stake struct {
	Delegation      Delegation
	CreditsObserved uint64
}

const (
	StakeStateV2StatusUninitialized = iota
	StakeStateV2StatusInitialized
	StakeStateV2StatusStake
	StakeStateV2StatusRewardsPool
)

type StakeStateV2Initialized struct {
	Meta Meta
}

type StakeStateV2Stake struct {
	Meta       Meta
	Stake      Stake
	StakeFlags StakeFlags
}

type StakeStateV2 struct {
	Status      uint32
	Initialized StakeStateV2Initialized
	Stake       StakeStateV2Stake
}

const (
	StakeAuthorizeStaker = iota
	StakeAuthorizeWithdrawer
)

// IsInForce reports whether the lockup still binds at clock. A signature by
// the lockup's custodian lifts it.
func (lockup *StakeLockup) IsInForce(clock *SysvarClock, custodian *solana.PublicKey) bool {
	if custodian != nil && *custodian == lockup.Custodian {
		return false
	}
	return lockup.UnixTimestamp > clock.UnixTimestamp || lockup.Epoch > clock.Epoch
}

func (authorized *Authorized) Check(signers []solana.PublicKey, stakeAuthorize uint32) error {
	switch stakeAuthorize {
	case StakeAuthorizeStaker:
		return verifySigner(authorized.Staker, signers)
	case StakeAuthorizeWithdrawer:
		return verifySigner(authorized.Withdrawer, signers)
	}
	return InstrErrInvalidArgument
}

// Authorize replaces one of the two authorities. The staker may be replaced
// by either authority; the withdrawer only by itself, subject to the lockup.
func (authorized *Authorized) Authorize(signers []solana.PublicKey, newAuthorized solana.PublicKey, stakeAuthorize uint32, lockup *StakeLockup, clock *SysvarClock, custodian *solana.PublicKey) error {
	switch stakeAuthorize {
	case StakeAuthorizeStaker:
		if verifySigner(authorized.Staker, signers) != nil && verifySigner(authorized.Withdrawer, signers) != nil {
			return InstrErrMissingRequiredSignature
		}
		authorized.Staker = newAuthorized

	case StakeAuthorizeWithdrawer:
		if lockup != nil && lockup.IsInForce(clock, nil) {
			if custodian == nil {
				return StakeErrCustodianMissing
			}
			if verifySigner(*custodian, signers) != nil {
				return StakeErrCustodianSignatureMissing
			}
			if lockup.IsInForce(clock, custodian) {
				return StakeErrLockupInForce
			}
		}
		err := authorized.Check(signers, StakeAuthorizeWithdrawer)
		if err != nil {
			return err
		}
		authorized.Withdrawer = newAuthorized

	default:
		return InstrErrInvalidArgument
	}

	return nil
}

// EffectiveStake is the delegated amount that counts as staked at epoch.
// Stake becomes effective the epoch after it is delegated and stops being
// effective the epoch after it is deactivated; warmup and cooldown are not
// rate limited.
func (delegation *Delegation) EffectiveStake(epoch uint64) uint64 {
	if delegation.ActivationEpoch == delegation.DeactivationEpoch {
		return 0
	}
	if epoch <= delegation.ActivationEpoch || epoch > delegation.DeactivationEpoch {
		return 0
	}
	return delegation.Stake
}

func (delegation *Delegation) IsDeactivating() bool {
	return delegation.DeactivationEpoch != math.MaxUint64
}

func newDelegation(voter solana.PublicKey, stake uint64, activationEpoch uint64) Delegation {
	return Delegation{
		VoterPubkey:        voter,
		Stake:              stake,
		ActivationEpoch:    activationEpoch,
		DeactivationEpoch:  math.MaxUint64,
		WarmupCooldownRate: DefaultWarmupCooldownRate,
	}
}

func (authorized *Authorized) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(authorized.Staker[:], pk)

	pk, err = decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(authorized.Withdrawer[:], pk)
	return nil
}

func (authorized *Authorized) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteBytes(authorized.Staker[:], false)
	return encoder.WriteBytes(authorized.Withdrawer[:], false)
}

func (lockup *StakeLockup) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	lockup.UnixTimestamp, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return err
	}

	lockup.Epoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(lockup.Custodian[:], pk)
	return nil
}

func (lockup *StakeLockup) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteInt64(lockup.UnixTimestamp, bin.LE)
	_ = encoder.WriteUint64(lockup.Epoch, bin.LE)
	return encoder.WriteBytes(lockup.Custodian[:], false)
}

func (meta *Meta) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	meta.RentExemptReserve, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	err = meta.Authorized.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	return meta.Lockup.UnmarshalWithDecoder(decoder)
}

func (meta *Meta) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint64(meta.RentExemptReserve, bin.LE)
	_ = meta.Authorized.MarshalWithEncoder(encoder)
	return meta.Lockup.MarshalWithEncoder(encoder)
}

func (delegation *Delegation) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(delegation.VoterPubkey[:], pk)

	delegation.Stake, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	delegation.ActivationEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	delegation.DeactivationEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	delegation.WarmupCooldownRate, err = decoder.ReadFloat64(bin.LE)
	return err
}

func (delegation *Delegation) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteBytes(delegation.VoterPubkey[:], false)
	_ = encoder.WriteUint64(delegation.Stake, bin.LE)
	_ = encoder.WriteUint64(delegation.ActivationEpoch, bin.LE)
	_ = encoder.WriteUint64(delegation.DeactivationEpoch, bin.LE)
	return encoder.WriteFloat64(delegation.WarmupCooldownRate, bin.LE)
}

func (stake *Stake) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := stake.Delegation.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	stake.CreditsObserved, err = decoder.ReadUint64(bin.LE)
	return err
}

func (stake *Stake) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = stake.Delegation.MarshalWithEncoder(encoder)
	return encoder.WriteUint64(stake.CreditsObserved, bin.LE)
}

func (state *StakeStateV2) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	state.Status, err = decoder.ReadUint32(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Status when decoding StakeStateV2: %w", err)
	}

	switch state.Status {
	case StakeStateV2StatusUninitialized, StakeStateV2StatusRewardsPool:
		return nil

	case StakeStateV2StatusInitialized:
		return state.Initialized.Meta.UnmarshalWithDecoder(decoder)

	case StakeStateV2StatusStake:
		err = state.Stake.Meta.UnmarshalWithDecoder(decoder)
		if err != nil {
			return err
		}
		err = state.Stake.Stake.UnmarshalWithDecoder(decoder)
		if err != nil {
			return err
		}
		state.Stake.StakeFlags.Bits, err = decoder.ReadByte()
		return err
	}

	return invalidEnumValue
}

func (state *StakeStateV2) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint32(state.Status, bin.LE)
	if err != nil {
		return err
	}

	switch state.Status {
	case StakeStateV2StatusUninitialized, StakeStateV2StatusRewardsPool:
		return nil

	case StakeStateV2StatusInitialized:
		return state.Initialized.Meta.MarshalWithEncoder(encoder)

	case StakeStateV2StatusStake:
		_ = state.Stake.Meta.MarshalWithEncoder(encoder)
		_ = state.Stake.Stake.MarshalWithEncoder(encoder)
		return encoder.WriteByte(state.Stake.StakeFlags.Bits)
	}

	return invalidEnumValue
}

func UnmarshalStakeState(data []byte) (*StakeStateV2, error) {
	state := new(StakeStateV2)
	err := state.UnmarshalWithDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, err
	}
	return state, nil
}

// MarshalStakeState serializes state into a buffer the size of a stake account.
func MarshalStakeState(state *StakeStateV2) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := state.MarshalWithEncoder(bin.NewBinEncoder(buf))
	if err != nil {
		return nil, err
	}
	data := make([]byte, StakeStateV2Size)
	copy(data, buf.Bytes())
	return data, nil
}

func getStakeAccountState(acct *BorrowedAccount) (*StakeStateV2, error) {
	state, err := UnmarshalStakeState(acct.Data())
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}
	return state, nil
}

func setStakeAccountState(acct *BorrowedAccount, state *StakeStateV2) error {
	data, err := MarshalStakeState(state)
	if err != nil {
		return InstrErrInvalidAccountData
	}
	return acct.SetState(data)
}

// Meta returns the meta of an Initialized or Stake state.
func (state *StakeStateV2) Meta() (*Meta, bool) {
	switch state.Status {
	case StakeStateV2StatusInitialized:
		return &state.Initialized.Meta, true
	case StakeStateV2StatusStake:
		return &state.Stake.Meta, true
	}
	return nil, false
}
