package scenario

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/accounts"
	"go.firedancer.io/singlepool/pkg/sealevel"
	"go.firedancer.io/singlepool/pkg/singlepool"
	"go.firedancer.io/singlepool/pkg/util"
)

// Pool is a read-only view of one pool's accounts.
type Pool struct {
	Addresses    *singlepool.PoolAddresses
	StakeAccount *accounts.Account
	Delegation   sealevel.Delegation
	Supply       uint64
	Metadata     *sealevel.TokenMetadata
}

// ReadPool loads the pool backing voteAccount straight from an account store,
// without going through a bank.
func ReadPool(accts accounts.Accounts, programID solana.PublicKey, voteAccount solana.PublicKey) (*Pool, error) {
	addrs, err := singlepool.FindPoolAddresses(programID, voteAccount)
	if err != nil {
		return nil, err
	}
	pool := &Pool{Addresses: addrs}

	stakeAcct, err := accts.GetAccount((*[32]byte)(&addrs.Stake))
	if err != nil {
		return nil, err
	}
	if stakeAcct == nil || stakeAcct.Owner != sealevel.StakeProgramAddr {
		return nil, fmt.Errorf("%w for vote account %s", ErrPoolNotFound, voteAccount)
	}
	pool.StakeAccount = stakeAcct

	state, err := sealevel.UnmarshalStakeState(stakeAcct.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding pool stake %s: %w", addrs.Stake, err)
	}
	if state.Status == sealevel.StakeStateV2StatusStake {
		pool.Delegation = state.Stake.Stake.Delegation
	}

	mintAcct, err := accts.GetAccount((*[32]byte)(&addrs.Mint))
	if err != nil {
		return nil, err
	}
	if mintAcct != nil && mintAcct.Owner == sealevel.TokenProgramAddr {
		mint, err := sealevel.UnmarshalTokenMint(mintAcct.Data)
		if err != nil {
			return nil, fmt.Errorf("decoding pool mint %s: %w", addrs.Mint, err)
		}
		pool.Supply = mint.Supply
	}

	mdAcct, err := accts.GetAccount((*[32]byte)(&addrs.Metadata))
	if err != nil {
		return nil, err
	}
	if mdAcct != nil && mdAcct.Owner == sealevel.TokenMetadataProgramAddr {
		pool.Metadata, err = sealevel.UnmarshalTokenMetadata(mdAcct.Data)
		if err != nil {
			return nil, fmt.Errorf("decoding pool metadata %s: %w", addrs.Metadata, err)
		}
	}

	return pool, nil
}

// StakeHash is the account hash of the pool stake account.
func (p *Pool) StakeHash() []byte {
	return util.CalculateAcctHash(*p.StakeAccount)
}

// Pool reads the pool of a scenario validator through the runner's bank.
func (r *Runner) Pool(validator string) (*Pool, error) {
	return ReadPool(bankAccounts{r.bank}, r.programID, r.VoteAccount(validator))
}

// bankAccounts serves reads from a bank, which takes its lock per call.
type bankAccounts struct {
	bank *sealevel.Bank
}

func (b bankAccounts) GetAccount(pubkey *[32]byte) (*accounts.Account, error) {
	return b.bank.GetAccount(solana.PublicKey(*pubkey))
}

func (b bankAccounts) SetAccount(pubkey *[32]byte, acct *accounts.Account) error {
	acct.Key = solana.PublicKey(*pubkey)
	return b.bank.SetAccount(acct)
}
