package singlepool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.firedancer.io/singlepool/pkg/sealevel"
)

// Successes and amounts are counted once the transaction commits. A handler
// error always fails its transaction, so errors are counted right away.
var (
	instructionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "singlepool",
		Name:      "instructions_total",
	}, []string{"instruction", "result"})
	tokensMinted = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "singlepool",
		Name:      "tokens_minted_total",
	})
	tokensBurned = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "singlepool",
		Name:      "tokens_burned_total",
	})
	stakeDeposited = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "singlepool",
		Name:      "stake_deposited_lamports_total",
	})
	stakeWithdrawn = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "singlepool",
		Name:      "stake_withdrawn_lamports_total",
	})
)

func recordInstruction(execCtx *sealevel.ExecutionCtx, name string, err error) {
	if err != nil {
		instructionsProcessed.WithLabelValues(name, "error").Inc()
		return
	}
	execCtx.OnCommit(func() {
		instructionsProcessed.WithLabelValues(name, "success").Inc()
	})
}
