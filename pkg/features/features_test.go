package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The TestFeatures_EnableAndDisable function tests that the
// enable and disable features work correctly.
func TestFeatures_EnableAndDisable(t *testing.T) {
	f := NewFeaturesDefault()
	f.EnableFeature(StakeRaiseMinimumDelegationTo1Sol, 0)
	assert.Equal(t, f.IsActive(StakeRaiseMinimumDelegationTo1Sol), true)
	f.DisableFeature(StakeRaiseMinimumDelegationTo1Sol)
	assert.Equal(t, f.IsActive(StakeRaiseMinimumDelegationTo1Sol), false)
	f.EnableFeature(StakeRaiseMinimumDelegationTo1Sol, 0)
	assert.Equal(t, f.IsActive(StakeRaiseMinimumDelegationTo1Sol), true)
}

// The TestFeatures_ListEnabled function tests that the AllEnabled function works
// as expected.
func TestFeatures_ListEnabled(t *testing.T) {
	f := NewFeaturesDefault()
	f.EnableFeature(StakeRaiseMinimumDelegationTo1Sol, 0)
	assert.Equal(t, f.AllEnabled(), []string{"feature StakeRaiseMinimumDelegationTo1Sol (9onWzzvCzNC2jfhxxeqRgs5q7nFAAKpCUvkj6T6GJK9i) enabled"})
}

func TestFeatures_ZeroValue(t *testing.T) {
	var f Features
	assert.False(t, f.IsActive(ReduceStakeWarmupCooldown))
	f.EnableFeature(ReduceStakeWarmupCooldown, 10)
	assert.True(t, f.IsActive(ReduceStakeWarmupCooldown))
}

func TestFeatures_GateByName(t *testing.T) {
	gate, ok := GateByName("RequireRentExemptSplitDestination")
	assert.True(t, ok)
	assert.Equal(t, RequireRentExemptSplitDestination, gate)

	_, ok = GateByName("NoSuchFeature")
	assert.False(t, ok)
}
