package singlepool

import (
	"github.com/holiman/uint256"
)

// calculateDepositAmount returns the pool tokens to mint for a deposit of
// userStakeToDeposit, given the token supply and available pool stake before
// the deposit. An empty pool mints one token per lamport.
func calculateDepositAmount(preTokenSupply uint64, prePoolStake uint64, userStakeToDeposit uint64) (uint64, bool) {
	if prePoolStake == 0 || preTokenSupply == 0 {
		return userStakeToDeposit, true
	}

	amount := new(uint256.Int).Mul(uint256.NewInt(userStakeToDeposit), uint256.NewInt(preTokenSupply))
	amount.Div(amount, uint256.NewInt(prePoolStake))
	if !amount.IsUint64() {
		return 0, false
	}
	return amount.Uint64(), true
}

// calculateWithdrawAmount returns the stake released for burning
// userTokensToBurn, given the token supply and available pool stake before the
// withdrawal. Rounding always favors the pool.
func calculateWithdrawAmount(preTokenSupply uint64, prePoolStake uint64, userTokensToBurn uint64) (uint64, bool) {
	numerator := new(uint256.Int).Mul(uint256.NewInt(userTokensToBurn), uint256.NewInt(prePoolStake))
	denominator := uint256.NewInt(preTokenSupply)
	if denominator.IsZero() || numerator.Lt(denominator) {
		return 0, true
	}

	amount := numerator.Div(numerator, denominator)
	if !amount.IsUint64() {
		return 0, false
	}
	return amount.Uint64(), true
}
