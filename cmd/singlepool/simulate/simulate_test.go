package simulate

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.firedancer.io/singlepool/pkg/config"
	"go.firedancer.io/singlepool/pkg/scenario"
)

func TestPrintResults(t *testing.T) {
	results := []scenario.StepResult{
		{Index: 0, Step: config.Step{Action: config.StepInitialize}, ComputeUnits: 1234},
		{
			Index: 1,
			Step:  config.Step{Action: config.StepDeposit},
			Err:   errors.New("SinglePoolErrWrongStakeState"),
			Logs:  []string{"Program log: Instruction: DepositStake"},
		},
		{Index: 2, Step: config.Step{Action: config.StepWarp}},
	}

	var buf bytes.Buffer
	failed := printResults(&buf, results, false)
	assert.Equal(t, 1, failed)

	out := buf.String()
	assert.Contains(t, out, "  0 initialize       ok (1234 CU)\n")
	assert.Contains(t, out, "  1 deposit          FAIL\n")
	assert.Contains(t, out, "    error: SinglePoolErrWrongStakeState\n")
	assert.Contains(t, out, "    | Program log: Instruction: DepositStake\n")
	assert.Contains(t, out, "  2 warp             ok\n")
	assert.NotContains(t, out, "\x1b[")
}
