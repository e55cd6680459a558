package inspect

import (
	"encoding/hex"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.firedancer.io/singlepool/pkg/accounts"
	"go.firedancer.io/singlepool/pkg/scenario"
	"go.firedancer.io/singlepool/pkg/singlepool"
	"go.firedancer.io/singlepool/pkg/util"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "inspect <vote-account>...",
		Short: "Show pool state stored in a ledger",
		Args:  cobra.MinimumNArgs(1),
		Run:   run,
	}

	flagLedger  string
	flagProgram string
)

func init() {
	Cmd.Flags().StringVarP(&flagLedger, "ledger", "l", "", "Ledger directory written by simulate")
	Cmd.Flags().StringVarP(&flagProgram, "program", "p", singlepool.DefaultProgramIDStr, "Pool program ID")
	_ = Cmd.MarkFlagRequired("ledger")
}

func run(c *cobra.Command, args []string) {
	programID, err := solana.PublicKeyFromBase58(flagProgram)
	if err != nil {
		klog.Exitf("invalid program ID %q: %s", flagProgram, err)
	}

	votes := make([]solana.PublicKey, 0, len(args))
	for _, arg := range args {
		vote, err := solana.PublicKeyFromBase58(arg)
		if err != nil {
			klog.Exitf("invalid vote account %q: %s", arg, err)
		}
		votes = append(votes, vote)
	}
	votes = util.DedupePubkeys(votes)

	accts, err := accounts.OpenPersistentAccounts(flagLedger)
	if err != nil {
		klog.Exitf("failed to open ledger at %s: %s", flagLedger, err)
	}
	defer func() {
		util.VerboseHandleError(accts.Close())
	}()

	out := c.OutOrStdout()
	for _, vote := range votes {
		pool, err := scenario.ReadPool(accts, programID, vote)
		if err != nil {
			klog.Errorf("%s: %s", vote, err)
			continue
		}

		fmt.Fprintf(out, "pool for vote account %s\n", vote)
		fmt.Fprintf(out, "  stake account: %s\n", pool.Addresses.Stake)
		fmt.Fprintf(out, "    lamports:    %d\n", pool.StakeAccount.Lamports)
		fmt.Fprintf(out, "    delegated:   %d (activation epoch %d)\n", pool.Delegation.Stake, pool.Delegation.ActivationEpoch)
		if pool.Delegation.IsDeactivating() {
			fmt.Fprintf(out, "    deactivating at epoch %d\n", pool.Delegation.DeactivationEpoch)
		}
		fmt.Fprintf(out, "    hash:        %s\n", hex.EncodeToString(pool.StakeHash()))
		fmt.Fprintf(out, "  mint:          %s\n", pool.Addresses.Mint)
		fmt.Fprintf(out, "    supply:      %d\n", pool.Supply)
		if pool.Metadata != nil {
			md := pool.Metadata.Data
			fmt.Fprintf(out, "  metadata:      %s\n", pool.Addresses.Metadata)
			fmt.Fprintf(out, "    name:        %s\n", md.Name)
			fmt.Fprintf(out, "    symbol:      %s\n", md.Symbol)
			fmt.Fprintf(out, "    uri:         %s\n", md.Uri)
		}
	}
}
