package address

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.firedancer.io/singlepool/pkg/singlepool"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "address <vote-account>",
		Short: "Print the derived addresses of a validator's pool",
		Args:  cobra.ExactArgs(1),
		Run:   run,
	}

	flagProgram string
)

func init() {
	Cmd.Flags().StringVarP(&flagProgram, "program", "p", singlepool.DefaultProgramIDStr, "Pool program ID")
}

func run(c *cobra.Command, args []string) {
	programID, err := solana.PublicKeyFromBase58(flagProgram)
	if err != nil {
		klog.Exitf("invalid program ID %q: %s", flagProgram, err)
	}
	voteAccount, err := solana.PublicKeyFromBase58(args[0])
	if err != nil {
		klog.Exitf("invalid vote account %q: %s", args[0], err)
	}

	addrs, err := singlepool.FindPoolAddresses(programID, voteAccount)
	if err != nil {
		klog.Exitf("failed to derive pool addresses: %s", err)
	}

	out := c.OutOrStdout()
	fmt.Fprintf(out, "vote account: %s\n", addrs.VoteAccount)
	fmt.Fprintf(out, "stake:        %s\n", addrs.Stake)
	fmt.Fprintf(out, "authority:    %s\n", addrs.Authority)
	fmt.Fprintf(out, "mint:         %s\n", addrs.Mint)
	fmt.Fprintf(out, "metadata:     %s\n", addrs.Metadata)
}
