package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.firedancer.io/singlepool/cmd/singlepool/address"
	"go.firedancer.io/singlepool/cmd/singlepool/inspect"
	"go.firedancer.io/singlepool/cmd/singlepool/simulate"
	"k8s.io/klog/v2"
)

var cmd = cobra.Command{
	Use:   "singlepool",
	Short: "Single-validator stake pool simulator",
}

func init() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(
		&address.Cmd,
		&inspect.Cmd,
		&simulate.Cmd,
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	cobra.CheckErr(cmd.ExecuteContext(ctx))
}
