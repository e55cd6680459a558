// Package scenario replays a config.Scenario against an in-process bank
// running the single pool program.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/accounts"
	"go.firedancer.io/singlepool/pkg/config"
	"go.firedancer.io/singlepool/pkg/sealevel"
	"go.firedancer.io/singlepool/pkg/singlepool"
	"k8s.io/klog/v2"
)

var ErrPoolNotFound = errors.New("pool not initialized")

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Index        int
	Step         config.Step
	Err          error
	Logs         []string
	ComputeUnits uint64
}

// Passed reports whether the step behaved as the scenario expected.
func (r *StepResult) Passed() bool {
	if r.Step.ExpectError == "" {
		return r.Err == nil
	}
	return r.Err != nil && strings.Contains(r.Err.Error(), r.Step.ExpectError)
}

type Runner struct {
	scenario  *config.Scenario
	bank      *sealevel.Bank
	programID solana.PublicKey
	rent      sealevel.SysvarRent
}

// NewRunner builds the scenario's genesis on top of accts: funded user
// wallets, vote accounts and the pool program.
func NewRunner(scenario *config.Scenario, accts accounts.Accounts) (*Runner, error) {
	f, err := scenario.FeatureSet()
	if err != nil {
		return nil, err
	}
	programID, err := scenario.Program()
	if err != nil {
		return nil, err
	}
	if programID.IsZero() {
		programID = singlepool.DefaultProgramID
	}

	bank, err := sealevel.NewBank(accts, f, scenario.RentSysvar())
	if err != nil {
		return nil, err
	}
	err = bank.AddProgram(programID, sealevel.BpfLoaderUpgradeableAddr, singlepool.Process)
	if err != nil {
		return nil, err
	}

	r := &Runner{scenario: scenario, bank: bank, programID: programID, rent: bank.Rent()}

	for _, user := range scenario.Users {
		wallet := r.wallet(user.Name)
		existing, err := bank.GetAccount(wallet)
		if err != nil {
			return nil, err
		}
		// a reopened ledger keeps its balances
		if existing != nil {
			continue
		}
		err = bank.Airdrop(wallet, user.Lamports)
		if err != nil {
			return nil, err
		}
	}

	for _, validator := range scenario.Validators {
		data := sealevel.NewVoteAccountData(sealevel.VoteStateHeader{
			Version:              validator.Version(),
			NodePubkey:           config.KeyFor("node", validator.Name),
			AuthorizedWithdrawer: r.wallet(validator.Withdrawer),
		})
		err = bank.SetAccount(&accounts.Account{
			Key:      r.VoteAccount(validator.Name),
			Lamports: r.rent.MinimumBalance(uint64(len(data))),
			Data:     data,
			Owner:    sealevel.VoteProgramAddr,
		})
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Runner) Bank() *sealevel.Bank {
	return r.bank
}

func (r *Runner) ProgramID() solana.PublicKey {
	return r.programID
}

func (r *Runner) VoteAccount(validator string) solana.PublicKey {
	return config.KeyFor("vote", validator)
}

func (r *Runner) wallet(user string) solana.PublicKey {
	return config.KeyFor("user", user)
}

func (r *Runner) stakeAccount(stake string) solana.PublicKey {
	return config.KeyFor("stake", stake)
}

func (r *Runner) tokenAccount(user string, validator string) solana.PublicKey {
	return config.KeyFor("token", user+"/"+validator)
}

// Run executes every step in order. A step failing against expectations does
// not stop the run; the caller inspects the results. Run only returns an
// error if ctx is cancelled or the ledger itself fails.
func (r *Runner) Run(ctx context.Context) ([]StepResult, error) {
	results := make([]StepResult, 0, len(r.scenario.Steps))
	for i, step := range r.scenario.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := StepResult{Index: i, Step: step}
		txResult, err := r.runStep(&step)
		result.Err = err
		result.Logs = txResult.Logs
		result.ComputeUnits = txResult.ComputeUnitsConsumed

		if result.Passed() {
			klog.V(2).Infof("step %d (%s) passed", i, step.Action)
		} else {
			klog.Warningf("step %d (%s) did not go as expected: %v", i, step.Action, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (r *Runner) runStep(step *config.Step) (sealevel.TransactionResult, error) {
	var none sealevel.TransactionResult

	switch step.Action {
	case config.StepInitialize:
		payer := r.wallet(step.User)
		vote := r.VoteAccount(step.Validator)
		return r.bank.ProcessTransaction(singlepool.Initialize(r.programID, vote, payer, &r.rent, sealevel.LamportsPerSol), payer)

	case config.StepCreateStake:
		wallet := r.wallet(step.User)
		stake := r.stakeAccount(step.Stake)
		instrs := singlepool.CreateAndDelegateUserStake(r.VoteAccount(step.Validator), wallet, stake, &r.rent, step.Lamports)
		return r.bank.ProcessTransaction(instrs, wallet, stake)

	case config.StepDeposit:
		wallet := r.wallet(step.User)
		token, err := r.ensureTokenAccount(step.User, step.Validator)
		if err != nil {
			return none, err
		}
		instrs := singlepool.Deposit(r.programID, r.VoteAccount(step.Validator), r.stakeAccount(step.Stake), token, wallet, wallet)
		return r.bank.ProcessTransaction(instrs, wallet)

	case config.StepWithdraw:
		wallet := r.wallet(step.User)
		dest := r.stakeAccount(step.Stake)
		_, err := r.bank.ProcessTransaction(singlepool.CreateBlankStakeAccount(wallet, dest, &r.rent), wallet, dest)
		if err != nil {
			return none, fmt.Errorf("creating stake account %s: %w", step.Stake, err)
		}
		token := r.tokenAccount(step.User, step.Validator)
		instrs := singlepool.Withdraw(r.programID, r.VoteAccount(step.Validator), dest, wallet, token, wallet, step.Tokens)
		return r.bank.ProcessTransaction(instrs, wallet)

	case config.StepWarp:
		return none, r.bank.WarpToEpoch(step.Epoch)

	case config.StepReward:
		return none, r.reward(step.Validator, step.Lamports)

	case config.StepCreateMetadata:
		payer := r.wallet(step.User)
		return r.bank.ProcessTransaction(singlepool.CreateTokenMetadata(r.programID, r.VoteAccount(step.Validator), payer), payer)

	case config.StepUpdateMetadata:
		withdrawer, err := r.withdrawerOf(step.Validator)
		if err != nil {
			return none, err
		}
		instrs := singlepool.UpdateTokenMetadata(r.programID, r.VoteAccount(step.Validator), withdrawer, step.Name, step.Symbol, step.Uri)
		return r.bank.ProcessTransaction(instrs, withdrawer)
	}

	return none, fmt.Errorf("%w %q", config.ErrUnknownAction, step.Action)
}

// ensureTokenAccount creates the user's pool token account on first use.
func (r *Runner) ensureTokenAccount(user string, validator string) (solana.PublicKey, error) {
	token := r.tokenAccount(user, validator)
	acct, err := r.bank.GetAccount(token)
	if err != nil {
		return token, err
	}
	if acct != nil && acct.Owner == sealevel.TokenProgramAddr {
		return token, nil
	}

	wallet := r.wallet(user)
	instrs := singlepool.CreatePoolTokenAccount(r.programID, r.VoteAccount(validator), wallet, token, wallet, &r.rent)
	_, err = r.bank.ProcessTransaction(instrs, wallet, token)
	if err != nil {
		return token, fmt.Errorf("creating token account for %s: %w", user, err)
	}
	return token, nil
}

func (r *Runner) withdrawerOf(validator string) (solana.PublicKey, error) {
	for _, v := range r.scenario.Validators {
		if v.Name == validator {
			return r.wallet(v.Withdrawer), nil
		}
	}
	return solana.PublicKey{}, fmt.Errorf("%w %q", config.ErrUnknownValidator, validator)
}

// reward credits the pool stake account as epoch rewards would: the lamports
// are added to both the balance and the delegation.
func (r *Runner) reward(validator string, lamports uint64) error {
	addrs, err := singlepool.FindPoolAddresses(r.programID, r.VoteAccount(validator))
	if err != nil {
		return err
	}
	acct, err := r.bank.GetAccount(addrs.Stake)
	if err != nil {
		return err
	}
	if acct == nil || acct.Owner != sealevel.StakeProgramAddr {
		return fmt.Errorf("%w for validator %s", ErrPoolNotFound, validator)
	}

	state, err := sealevel.UnmarshalStakeState(acct.Data)
	if err != nil {
		return err
	}
	if state.Status != sealevel.StakeStateV2StatusStake {
		return fmt.Errorf("%w for validator %s", ErrPoolNotFound, validator)
	}
	state.Stake.Stake.Delegation.Stake += lamports
	acct.Data, err = sealevel.MarshalStakeState(state)
	if err != nil {
		return err
	}
	acct.Lamports += lamports
	return r.bank.SetAccount(acct)
}
