package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/singlepool/pkg/features"
	"go.firedancer.io/singlepool/pkg/sealevel"
)

const testScenario = `
rent:
  exemption_threshold: 3.0
features:
  - StakeRaiseMinimumDelegationTo1Sol
validators:
  - name: v1
    withdrawer: operator
users:
  - name: operator
    lamports: 100000000000
  - name: alice
    lamports: 50000000000
steps:
  - action: initialize
    validator: v1
    user: operator
  - action: create_stake
    validator: v1
    user: alice
    stake: a1
    lamports: 5000000000
  - action: warp
    epoch: 1
  - action: deposit
    validator: v1
    user: alice
    stake: a1
  - action: withdraw
    validator: v1
    user: alice
    stake: a2
    tokens: 0
    expect_error: WithdrawalTooSmall
`

func TestParse_Scenario(t *testing.T) {
	scenario, err := Parse([]byte(testScenario))
	require.NoError(t, err)

	require.Len(t, scenario.Validators, 1)
	assert.Equal(t, "operator", scenario.Validators[0].Withdrawer)
	assert.Equal(t, uint32(sealevel.VoteStateVersionV1_14_11), scenario.Validators[0].Version())
	require.Len(t, scenario.Users, 2)
	assert.Equal(t, uint64(50_000_000_000), scenario.Users[1].Lamports)

	require.Len(t, scenario.Steps, 5)
	assert.Equal(t, StepWarp, scenario.Steps[2].Action)
	assert.Equal(t, uint64(1), scenario.Steps[2].Epoch)
	assert.Equal(t, "WithdrawalTooSmall", scenario.Steps[4].ExpectError)

	rent := scenario.RentSysvar()
	assert.Equal(t, 3.0, rent.ExemptionThreshold)
	assert.Equal(t, uint64(sealevel.DefaultLamportsPerByteYear), rent.LamportsPerUint8Year)

	f, err := scenario.FeatureSet()
	require.NoError(t, err)
	assert.True(t, f.IsActive(features.StakeRaiseMinimumDelegationTo1Sol))
	assert.False(t, f.IsActive(features.RequireRentExemptSplitDestination))

	programID, err := scenario.Program()
	require.NoError(t, err)
	assert.True(t, programID.IsZero())
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		err  error
	}{
		{"UnknownAction", "steps:\n  - action: explode\n", ErrUnknownAction},
		{"UnknownValidator", "users: [{name: a}]\nsteps:\n  - {action: initialize, validator: nope, user: a}\n", ErrUnknownValidator},
		{"UnknownUser", "users: [{name: a}]\nvalidators: [{name: v, withdrawer: a}]\nsteps:\n  - {action: initialize, validator: v, user: b}\n", ErrUnknownUser},
		{"UnknownWithdrawer", "validators: [{name: v, withdrawer: a}]\n", ErrUnknownUser},
		{"MissingStake", "users: [{name: a}]\nvalidators: [{name: v, withdrawer: a}]\nsteps:\n  - {action: deposit, validator: v, user: a}\n", ErrMissingField},
		{"DuplicateUser", "users: [{name: a}, {name: a}]\n", ErrDuplicateName},
		{"UnknownFeature", "features: [NotAFeature]\n", ErrUnknownFeature},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.ErrorIs(t, err, tc.err)
		})
	}

	_, err := Parse([]byte("program_id: notbase58!\n"))
	assert.Error(t, err)
	_, err = Parse([]byte("steps: {"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testScenario), 0o644))

	scenario, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, scenario.Steps, 5)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, KeyFor("user", "alice"), KeyFor("user", "alice"))
	assert.NotEqual(t, KeyFor("user", "alice"), KeyFor("stake", "alice"))
	assert.NotEqual(t, KeyFor("user", "alice"), KeyFor("user", "bob"))
}
