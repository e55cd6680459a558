package sealevel

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/accounts"
	"go.firedancer.io/singlepool/pkg/cu"
	"go.firedancer.io/singlepool/pkg/features"
	"go.firedancer.io/singlepool/pkg/util"
	"k8s.io/klog/v2"
)

const DefaultSlotsPerEpoch = 432_000

// rough mainnet slot time, used to move the clock's unix timestamp forward
const defaultSlotDurationMs = 400

var ConfigProgramAddr = mustAddr("Config1111111111111111111111111111111111111")

var (
	ErrMissingTransactionSignature = errors.New("transaction is missing a required signature")
	ErrEmptyTransaction            = errors.New("transaction has no instructions")
	ErrEpochInPast                 = errors.New("cannot warp to an epoch in the past")
)

// TransactionResult describes an executed transaction, whether or not it
// succeeded.
type TransactionResult struct {
	Logs                 []string
	ComputeUnitsConsumed uint64
}

// Bank is an in-process ledger. It executes transactions one at a time
// against a working copy of the accounts they reference and commits the copy
// only when every instruction of the transaction succeeds.
type Bank struct {
	mu            sync.Mutex
	accts         accounts.Accounts
	keys          map[solana.PublicKey]struct{}
	programs      map[solana.PublicKey]ProcessInstructionFn
	features      *features.Features
	sysvars       SysvarCache
	slotsPerEpoch uint64
}

// NewBank creates a bank at slot 0 with the builtin programs and sysvar
// accounts in place.
func NewBank(accts accounts.Accounts, f *features.Features, rent SysvarRent) (*Bank, error) {
	if f == nil {
		f = features.NewFeaturesDefault()
	}

	b := &Bank{
		accts:         accts,
		keys:          make(map[solana.PublicKey]struct{}),
		programs:      make(map[solana.PublicKey]ProcessInstructionFn),
		features:      f,
		slotsPerEpoch: DefaultSlotsPerEpoch,
	}
	b.sysvars.Rent = rent
	b.sysvars.Clock = SysvarClock{LeaderScheduleEpoch: 1}

	for programId, programFn := range NativePrograms() {
		err := b.AddProgram(programId, NativeLoaderAddr, programFn)
		if err != nil {
			return nil, err
		}
	}

	err := b.setAccount(&accounts.Account{Key: StakeProgramConfigAddr, Lamports: 1, Owner: ConfigProgramAddr})
	if err != nil {
		return nil, err
	}

	err = b.writeSysvars()
	if err != nil {
		return nil, err
	}

	return b, nil
}

// AddProgram makes programFn executable at programId.
func (b *Bank) AddProgram(programId solana.PublicKey, owner solana.PublicKey, programFn ProcessInstructionFn) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.programs[programId] = programFn
	return b.setAccount(&accounts.Account{Key: programId, Lamports: 1, Owner: owner, Executable: true})
}

func (b *Bank) Features() *features.Features {
	return b.features
}

func (b *Bank) Rent() SysvarRent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sysvars.Rent
}

func (b *Bank) Clock() SysvarClock {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sysvars.Clock
}

// GetAccount returns a copy of the account, or nil if it does not exist.
func (b *Bank) GetAccount(pubkey solana.PublicKey) (*accounts.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, err := b.getAccount(pubkey)
	if err != nil || acct == nil {
		return nil, err
	}
	return acct.Clone(), nil
}

// SetAccount stores a copy of acct, replacing any existing account at acct.Key.
func (b *Bank) SetAccount(acct *accounts.Account) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.setAccount(acct.Clone())
}

// Airdrop credits lamports to pubkey, creating a system account if needed.
func (b *Bank) Airdrop(pubkey solana.PublicKey, lamports uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, err := b.getAccount(pubkey)
	if err != nil {
		return err
	}
	if acct == nil {
		acct = &accounts.Account{Key: pubkey, Owner: SystemProgramAddr}
	} else {
		acct = acct.Clone()
	}
	acct.Lamports += lamports
	return b.setAccount(acct)
}

// Keys lists every account the bank has stored, in address order.
func (b *Bank) Keys() []solana.PublicKey {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]solana.PublicKey, 0, len(b.keys))
	for key := range b.keys {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return util.PubkeyCmp(keys[i], keys[j])
	})
	return keys
}

// WarpToEpoch moves the clock to the first slot of epoch.
func (b *Bank) WarpToEpoch(epoch uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	clock := &b.sysvars.Clock
	if epoch < clock.Epoch {
		return ErrEpochInPast
	}

	slot := epoch * b.slotsPerEpoch
	elapsedMs := int64(slot-clock.Slot) * defaultSlotDurationMs

	for e := clock.Epoch; e < epoch; e++ {
		b.sysvars.StakeHistory.Update(e, StakeHistoryEntry{})
	}

	clock.UnixTimestamp += elapsedMs / 1000
	clock.Slot = slot
	clock.Epoch = epoch
	clock.LeaderScheduleEpoch = epoch + 1
	clock.EpochStartTimestamp = clock.UnixTimestamp

	klog.Infof("warped to epoch %d (slot %d)", epoch, slot)
	return b.writeSysvars()
}

func (b *Bank) ProcessInstruction(ix Instruction, signers ...solana.PublicKey) (TransactionResult, error) {
	return b.ProcessTransaction([]Instruction{ix}, signers...)
}

// ProcessTransaction executes instructions in order. If any instruction fails,
// the returned error is an *InstructionError and no account is modified.
func (b *Bank) ProcessTransaction(instrs []Instruction, signers ...solana.PublicKey) (TransactionResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result TransactionResult
	if len(instrs) == 0 {
		return result, ErrEmptyTransaction
	}

	privileges, err := messagePrivileges(instrs, signers)
	if err != nil {
		return result, err
	}

	working := make(map[solana.PublicKey]*accounts.Account)
	for _, ix := range instrs {
		err = b.load(working, ix.ProgramId)
		if err != nil {
			return result, err
		}
		for _, accountMeta := range ix.Accounts {
			err = b.load(working, accountMeta.Pubkey)
			if err != nil {
				return result, err
			}
		}
	}

	log := new(LogRecorder)
	execCtx := &ExecutionCtx{
		Log:                log,
		TransactionContext: NewTransactionCtx(working),
		ComputeMeter:       cu.NewComputeMeterDefault(),
		Features:           b.features,
		SysvarCache:        b.sysvars,
		programs:           b.programs,
	}

	for idx, ix := range instrs {
		instrAccts := make([]InstructionAccount, 0, len(ix.Accounts))
		for instrAcctIdx, accountMeta := range ix.Accounts {
			privilege := privileges[accountMeta.Pubkey]
			instrAccts = append(instrAccts, InstructionAccount{
				Pubkey:        accountMeta.Pubkey,
				IndexInCaller: instrAcctIdx,
				IsSigner:      privilege.IsSigner,
				IsWritable:    privilege.IsWritable,
			})
		}

		err = execCtx.ProcessInstruction(ix.ProgramId, ix.Data, instrAccts)
		if err != nil {
			result.Logs = log.Logs
			result.ComputeUnitsConsumed = execCtx.ComputeMeter.Used()
			klog.V(2).Infof("transaction failed at instruction %d: %s", idx, err)
			return result, &InstructionError{Index: idx, Err: err}
		}
	}

	for pubkey, privilege := range privileges {
		if !privilege.IsWritable {
			continue
		}
		acct := working[pubkey]
		if acct.Lamports == 0 && !acct.Executable {
			acct = &accounts.Account{Key: pubkey, Owner: SystemProgramAddr}
		}
		err = b.setAccount(acct)
		if err != nil {
			return result, fmt.Errorf("committing account %s: %w", pubkey, err)
		}
	}

	for _, hook := range execCtx.commitHooks {
		hook()
	}

	result.Logs = log.Logs
	result.ComputeUnitsConsumed = execCtx.ComputeMeter.Used()
	return result, nil
}

// messagePrivileges merges the account metas of every instruction, as a
// transaction message does, and checks that every required signer signed.
func messagePrivileges(instrs []Instruction, signers []solana.PublicKey) (map[solana.PublicKey]AccountMeta, error) {
	signed := make(map[solana.PublicKey]struct{}, len(signers))
	for _, signer := range signers {
		signed[signer] = struct{}{}
	}

	privileges := make(map[solana.PublicKey]AccountMeta)
	for _, ix := range instrs {
		for _, accountMeta := range ix.Accounts {
			privilege := privileges[accountMeta.Pubkey]
			privilege.Pubkey = accountMeta.Pubkey
			privilege.IsSigner = privilege.IsSigner || accountMeta.IsSigner
			privilege.IsWritable = privilege.IsWritable || accountMeta.IsWritable
			privileges[accountMeta.Pubkey] = privilege
		}
	}

	for pubkey, privilege := range privileges {
		if _, ok := signed[pubkey]; privilege.IsSigner && !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingTransactionSignature, pubkey)
		}
	}
	return privileges, nil
}

func (b *Bank) load(working map[solana.PublicKey]*accounts.Account, pubkey solana.PublicKey) error {
	if _, ok := working[pubkey]; ok {
		return nil
	}
	acct, err := b.getAccount(pubkey)
	if err != nil {
		return err
	}
	if acct == nil {
		acct = &accounts.Account{Key: pubkey, Owner: SystemProgramAddr}
	} else {
		acct = acct.Clone()
	}
	working[pubkey] = acct
	return nil
}

func (b *Bank) getAccount(pubkey solana.PublicKey) (*accounts.Account, error) {
	key := [32]byte(pubkey)
	return b.accts.GetAccount(&key)
}

func (b *Bank) setAccount(acct *accounts.Account) error {
	key := [32]byte(acct.Key)
	err := b.accts.SetAccount(&key, acct)
	if err != nil {
		return err
	}
	b.keys[acct.Key] = struct{}{}
	return nil
}

func (b *Bank) writeSysvars() error {
	sysvars := []struct {
		addr solana.PublicKey
		data []byte
	}{
		{SysvarRentAddr, b.sysvars.Rent.Marshal()},
		{SysvarClockAddr, b.sysvars.Clock.Marshal()},
		{SysvarStakeHistoryAddr, b.sysvars.StakeHistory.Marshal()},
	}

	for _, sysvar := range sysvars {
		err := b.setAccount(&accounts.Account{
			Key:      sysvar.addr,
			Lamports: b.sysvars.Rent.MinimumBalance(uint64(len(sysvar.data))),
			Data:     sysvar.data,
			Owner:    SysvarOwnerAddr,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
