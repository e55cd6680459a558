// Package config loads pool simulation scenarios from YAML.
//
// A scenario describes the genesis of a ledger (rent parameters, feature
// gates, validators and funded users) followed by the steps to run against it.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/minio/sha256-simd"
	"go.firedancer.io/singlepool/pkg/features"
	"go.firedancer.io/singlepool/pkg/sealevel"
	"gopkg.in/yaml.v3"
)

const (
	StepInitialize     = "initialize"
	StepCreateStake    = "create_stake"
	StepDeposit        = "deposit"
	StepWithdraw       = "withdraw"
	StepWarp           = "warp"
	StepReward         = "reward"
	StepCreateMetadata = "create_metadata"
	StepUpdateMetadata = "update_metadata"
)

var (
	ErrUnknownAction    = errors.New("unknown step action")
	ErrUnknownValidator = errors.New("unknown validator")
	ErrUnknownUser      = errors.New("unknown user")
	ErrUnknownFeature   = errors.New("unknown feature gate")
	ErrDuplicateName    = errors.New("duplicate name")
	ErrMissingField     = errors.New("missing required field")
)

type Rent struct {
	LamportsPerByteYear uint64  `yaml:"lamports_per_byte_year"`
	ExemptionThreshold  float64 `yaml:"exemption_threshold"`
	BurnPercent         uint8   `yaml:"burn_percent"`
}

type Validator struct {
	Name string `yaml:"name"`
	// Withdrawer names the user holding the vote account's withdraw authority.
	Withdrawer string `yaml:"withdrawer"`
	// VoteStateVersion defaults to the 1.14.11 layout.
	VoteStateVersion *uint32 `yaml:"vote_state_version,omitempty"`
}

type User struct {
	Name     string `yaml:"name"`
	Lamports uint64 `yaml:"lamports"`
}

type Step struct {
	Action    string `yaml:"action"`
	Validator string `yaml:"validator,omitempty"`
	User      string `yaml:"user,omitempty"`
	Stake     string `yaml:"stake,omitempty"`
	Lamports  uint64 `yaml:"lamports,omitempty"`
	Tokens    uint64 `yaml:"tokens,omitempty"`
	Epoch     uint64 `yaml:"epoch,omitempty"`
	Name      string `yaml:"name,omitempty"`
	Symbol    string `yaml:"symbol,omitempty"`
	Uri       string `yaml:"uri,omitempty"`

	// ExpectError makes the step pass only if it fails with an error whose
	// message contains this string.
	ExpectError string `yaml:"expect_error,omitempty"`
}

type Scenario struct {
	ProgramID  string      `yaml:"program_id,omitempty"`
	Rent       *Rent       `yaml:"rent,omitempty"`
	Features   []string    `yaml:"features,omitempty"`
	Validators []Validator `yaml:"validators"`
	Users      []User      `yaml:"users"`
	Steps      []Step      `yaml:"steps"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	scenario, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenario, nil
}

func Parse(data []byte) (*Scenario, error) {
	scenario := new(Scenario)
	err := yaml.Unmarshal(data, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	err = scenario.Validate()
	if err != nil {
		return nil, err
	}
	return scenario, nil
}

// Validate checks that every step refers to declared validators and users
// and carries the fields its action needs.
func (s *Scenario) Validate() error {
	if _, err := s.Program(); err != nil {
		return err
	}
	if _, err := s.FeatureSet(); err != nil {
		return err
	}

	users := make(map[string]struct{}, len(s.Users))
	for _, user := range s.Users {
		if user.Name == "" {
			return fmt.Errorf("user: %w: name", ErrMissingField)
		}
		if _, ok := users[user.Name]; ok {
			return fmt.Errorf("user %q: %w", user.Name, ErrDuplicateName)
		}
		users[user.Name] = struct{}{}
	}

	validators := make(map[string]struct{}, len(s.Validators))
	for _, validator := range s.Validators {
		if validator.Name == "" {
			return fmt.Errorf("validator: %w: name", ErrMissingField)
		}
		if _, ok := validators[validator.Name]; ok {
			return fmt.Errorf("validator %q: %w", validator.Name, ErrDuplicateName)
		}
		if _, ok := users[validator.Withdrawer]; !ok {
			return fmt.Errorf("validator %q withdrawer %q: %w", validator.Name, validator.Withdrawer, ErrUnknownUser)
		}
		validators[validator.Name] = struct{}{}
	}

	for i, step := range s.Steps {
		err := step.validate(validators, users)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
	}
	return nil
}

func (step *Step) validate(validators map[string]struct{}, users map[string]struct{}) error {
	var needValidator, needUser, needStake bool
	switch step.Action {
	case StepInitialize, StepCreateMetadata:
		needValidator, needUser = true, true
	case StepCreateStake, StepDeposit, StepWithdraw:
		needValidator, needUser, needStake = true, true, true
	case StepReward, StepUpdateMetadata:
		needValidator = true
	case StepWarp:
	default:
		return fmt.Errorf("%w %q", ErrUnknownAction, step.Action)
	}

	if needValidator {
		if _, ok := validators[step.Validator]; !ok {
			return fmt.Errorf("%w %q", ErrUnknownValidator, step.Validator)
		}
	}
	if needUser {
		if _, ok := users[step.User]; !ok {
			return fmt.Errorf("%w %q", ErrUnknownUser, step.User)
		}
	}
	if needStake && step.Stake == "" {
		return fmt.Errorf("%w: stake", ErrMissingField)
	}
	return nil
}

// Program returns the pool program address, or the zero key if the scenario
// leaves the choice to the caller.
func (s *Scenario) Program() (solana.PublicKey, error) {
	if s.ProgramID == "" {
		return solana.PublicKey{}, nil
	}
	programID, err := solana.PublicKeyFromBase58(s.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid program_id %q: %w", s.ProgramID, err)
	}
	return programID, nil
}

func (s *Scenario) RentSysvar() sealevel.SysvarRent {
	rent := sealevel.DefaultRent()
	if s.Rent == nil {
		return rent
	}
	if s.Rent.LamportsPerByteYear != 0 {
		rent.LamportsPerUint8Year = s.Rent.LamportsPerByteYear
	}
	if s.Rent.ExemptionThreshold != 0 {
		rent.ExemptionThreshold = s.Rent.ExemptionThreshold
	}
	if s.Rent.BurnPercent != 0 {
		rent.BurnPercent = s.Rent.BurnPercent
	}
	return rent
}

// FeatureSet enables the named gates from slot 0.
func (s *Scenario) FeatureSet() (*features.Features, error) {
	f := features.NewFeaturesDefault()
	for _, name := range s.Features {
		gate, ok := features.GateByName(name)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownFeature, name)
		}
		f.EnableFeature(gate, 0)
	}
	return f, nil
}

func (v *Validator) Version() uint32 {
	if v.VoteStateVersion == nil {
		return sealevel.VoteStateVersionV1_14_11
	}
	return *v.VoteStateVersion
}

// KeyFor maps a scenario name to a stable address, so that reruns against a
// persistent ledger see the same accounts. The kind keeps a user's wallet
// apart from a stake account of the same name.
func KeyFor(kind string, name string) solana.PublicKey {
	return solana.PublicKey(sha256.Sum256([]byte(kind + ":" + name)))
}
