package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/dlrshim/internal/backend"
	"github.com/ekisa-team/dlrshim/internal/backend/tvm"
)

// newBackends builds the backend registry used by every command.
var newBackends = func() (*backend.Registry, error) {
	reg := backend.NewRegistry(nil)
	if err := tvm.Register(reg, tvm.NewLoader(nil, nil)); err != nil {
		return nil, err
	}
	return reg, nil
}

func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "dlrshim",
		Short:         "Compiled model runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.AddCommand(
		newDetectCmd(),
		newInspectCmd(),
		newRunCmd(),
		newServeCmd(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
