package singlepool

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mathSamples = []uint64{1, 2, 3, 7, 999, 1_000_000, 1_000_000_007, 5_000_000_000, 1 << 40, math.MaxUint64 / 3, math.MaxUint64 - 1, math.MaxUint64}

func TestCalculateDepositAmount_Bootstrap(t *testing.T) {
	amount, ok := calculateDepositAmount(0, 0, 5_000_000_000)
	require.True(t, ok)
	assert.Equal(t, uint64(5_000_000_000), amount)

	amount, ok = calculateDepositAmount(0, 10, 42)
	require.True(t, ok)
	assert.Equal(t, uint64(42), amount)

	amount, ok = calculateDepositAmount(10, 0, 42)
	require.True(t, ok)
	assert.Equal(t, uint64(42), amount)
}

func TestCalculateDepositAmount_UnityRate(t *testing.T) {
	for _, s := range mathSamples {
		for _, x := range mathSamples {
			amount, ok := calculateDepositAmount(s, s, x)
			require.True(t, ok)
			assert.Equal(t, x, amount, "supply=stake=%d deposit=%d", s, x)
		}
	}
}

func TestCalculateDepositAmount_Monotonic(t *testing.T) {
	for _, supply := range mathSamples {
		for _, stake := range mathSamples {
			var prev uint64
			for _, x := range mathSamples {
				amount, ok := calculateDepositAmount(supply, stake, x)
				if !ok {
					// once the result leaves u64 range every larger deposit does too
					for _, y := range mathSamples {
						if y >= x {
							_, ok := calculateDepositAmount(supply, stake, y)
							assert.False(t, ok)
						}
					}
					break
				}
				assert.GreaterOrEqual(t, amount, prev)
				prev = amount
			}
		}
	}
}

func TestCalculateDepositAmount_Overflow(t *testing.T) {
	_, ok := calculateDepositAmount(math.MaxUint64, 1, 2)
	assert.False(t, ok)
}

func TestCalculateDepositAmount_Proportional(t *testing.T) {
	amount, ok := calculateDepositAmount(10_000_000_000, 10_000_000_000, 1_000_000_000)
	require.True(t, ok)
	assert.Equal(t, uint64(1_000_000_000), amount)

	// rewards accrued: each lamport buys fewer tokens
	amount, ok = calculateDepositAmount(10_000_000_000, 20_000_000_000, 1_000_000_000)
	require.True(t, ok)
	assert.Equal(t, uint64(500_000_000), amount)
}

func TestCalculateWithdrawAmount_NeverExceedsBacking(t *testing.T) {
	for _, supply := range mathSamples {
		for _, stake := range mathSamples {
			var prev uint64
			for _, tokens := range mathSamples {
				if tokens > supply {
					break
				}
				amount, ok := calculateWithdrawAmount(supply, stake, tokens)
				require.True(t, ok)
				assert.LessOrEqual(t, amount, stake)
				assert.GreaterOrEqual(t, amount, prev)
				prev = amount
			}
		}
	}
}

func TestCalculateWithdrawAmount_Proportional(t *testing.T) {
	amount, ok := calculateWithdrawAmount(11_000_000_000, 11_000_000_000, 1_100_000_000)
	require.True(t, ok)
	assert.Equal(t, uint64(1_100_000_000), amount)
}

func TestCalculateWithdrawAmount_Dust(t *testing.T) {
	amount, ok := calculateWithdrawAmount(1_000_000, 1, 1)
	require.True(t, ok)
	assert.Equal(t, uint64(0), amount)

	amount, ok = calculateWithdrawAmount(0, 1_000_000, 1)
	require.True(t, ok)
	assert.Equal(t, uint64(0), amount)
}

func TestCalculateWithdrawAmount_Overflow(t *testing.T) {
	_, ok := calculateWithdrawAmount(1, math.MaxUint64, 2)
	assert.False(t, ok)
}

func TestDepositThenWithdraw_NeverFavorsWithdrawer(t *testing.T) {
	for _, supply := range mathSamples {
		for _, stake := range mathSamples {
			for _, added := range mathSamples {
				minted, ok := calculateDepositAmount(supply, stake, added)
				if !ok || minted == 0 {
					continue
				}
				postSupply, postStake := supply+minted, stake+added
				if postSupply < supply || postStake < stake {
					continue
				}
				out, ok := calculateWithdrawAmount(postSupply, postStake, minted)
				require.True(t, ok)
				assert.LessOrEqual(t, out, added, "supply=%d stake=%d added=%d", supply, stake, added)
			}
		}
	}
}
