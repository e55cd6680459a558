// Package cu meters the compute units spent by one transaction.
package cu

import (
	"errors"
	"fmt"
)

var ErrComputeExceeded = errors.New("Compute exceeded")

// MaxComputeUnitLimit is the per-transaction budget granted by the bank.
const MaxComputeUnitLimit = 1_400_000

type ComputeMeter struct {
	limit uint64
	used  uint64
}

func NewComputeMeter(limit uint64) ComputeMeter {
	return ComputeMeter{limit: limit}
}

func NewComputeMeterDefault() ComputeMeter {
	return NewComputeMeter(MaxComputeUnitLimit)
}

// Consume charges cost against the budget. Once the budget is spent the meter
// stays at its limit and every further charge fails.
func (cm *ComputeMeter) Consume(cost uint64) error {
	left := cm.Remaining()
	if cost > left {
		cm.used = cm.limit
		return fmt.Errorf("%w: needed %d with %d left", ErrComputeExceeded, cost, left)
	}
	cm.used += cost
	return nil
}

func (cm *ComputeMeter) Used() uint64 {
	return cm.used
}

func (cm *ComputeMeter) Remaining() uint64 {
	return cm.limit - cm.used
}
