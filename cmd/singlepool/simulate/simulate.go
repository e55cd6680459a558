package simulate

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/textio"
	"github.com/spf13/cobra"
	"go.firedancer.io/singlepool/pkg/accounts"
	"go.firedancer.io/singlepool/pkg/config"
	"go.firedancer.io/singlepool/pkg/scenario"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run a pool scenario against an in-process ledger",
		Args:  cobra.ExactArgs(1),
		Run:   run,
	}

	flagLedger  string
	flagLogs    bool
	flagMetrics bool
)

func init() {
	Cmd.Flags().StringVarP(&flagLedger, "ledger", "l", "", "Persist accounts to this directory instead of memory")
	Cmd.Flags().BoolVar(&flagLogs, "logs", false, "Print program logs of every step")
	Cmd.Flags().BoolVar(&flagMetrics, "metrics", false, "Print pool program counters after the run")
}

func run(c *cobra.Command, args []string) {
	s, err := config.Load(args[0])
	if err != nil {
		klog.Exitf("failed to load scenario: %s", err)
	}

	var accts accounts.Accounts = accounts.NewMemAccounts()
	if flagLedger != "" {
		persistent, err := accounts.OpenPersistentAccounts(flagLedger)
		if err != nil {
			klog.Exitf("failed to open ledger at %s: %s", flagLedger, err)
		}
		defer persistent.Close()
		accts = persistent
		klog.Infof("using ledger at %s", flagLedger)
	}

	runner, err := scenario.NewRunner(s, accts)
	if err != nil {
		klog.Exitf("failed to set up scenario: %s", err)
	}

	results, err := runner.Run(c.Context())
	if err != nil {
		klog.Exitf("scenario aborted: %s", err)
	}

	out := c.OutOrStdout()
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}

	failed := printResults(out, results, color)
	printPools(out, runner, s)
	if flagMetrics {
		printMetrics(out)
	}

	if failed > 0 {
		klog.Exitf("%d of %d steps did not go as expected", failed, len(results))
	}
}

func printResults(out io.Writer, results []scenario.StepResult, color bool) int {
	var failed int
	for _, result := range results {
		status := "ok"
		if !result.Passed() {
			status = "FAIL"
			failed++
		}
		if color {
			if result.Passed() {
				status = "\x1b[32m" + status + "\x1b[0m"
			} else {
				status = "\x1b[31m" + status + "\x1b[0m"
			}
		}

		fmt.Fprintf(out, "%3d %-16s %s", result.Index, result.Step.Action, status)
		if result.ComputeUnits != 0 {
			fmt.Fprintf(out, " (%d CU)", result.ComputeUnits)
		}
		fmt.Fprintln(out)

		if result.Err != nil {
			fmt.Fprintf(out, "    error: %s\n", result.Err)
		}
		if flagLogs || !result.Passed() {
			logs := textio.NewPrefixWriter(out, "    | ")
			for _, line := range result.Logs {
				fmt.Fprintln(logs, line)
			}
			_ = logs.Flush()
		}
	}
	return failed
}

func printPools(out io.Writer, runner *scenario.Runner, s *config.Scenario) {
	for _, validator := range s.Validators {
		pool, err := runner.Pool(validator.Name)
		if err != nil {
			klog.V(1).Infof("no pool for %s: %s", validator.Name, err)
			continue
		}
		fmt.Fprintf(out, "\npool %s (vote %s)\n", validator.Name, pool.Addresses.VoteAccount)
		fmt.Fprintf(out, "  stake:  %d lamports, %d delegated\n", pool.StakeAccount.Lamports, pool.Delegation.Stake)
		fmt.Fprintf(out, "  supply: %d\n", pool.Supply)
		if pool.Metadata != nil {
			fmt.Fprintf(out, "  token:  %s (%s)\n", pool.Metadata.Data.Name, pool.Metadata.Data.Symbol)
		}
	}
}

func printMetrics(out io.Writer) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		klog.Warningf("failed to gather metrics: %s", err)
		return
	}

	fmt.Fprintln(out)
	for _, family := range families {
		if !strings.HasPrefix(family.GetName(), "singlepool_") {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, label := range metric.GetLabel() {
				labels = append(labels, label.GetName()+"="+label.GetValue())
			}
			fmt.Fprintf(out, "%s{%s} %g\n", family.GetName(), strings.Join(labels, ","), metric.GetCounter().GetValue())
		}
	}
}
