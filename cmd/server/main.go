package main // Entry point package

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd runs the HTTP server when no subcommand is given.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kids-checkin",
		Short:         "Children's ministry check-in and attendance server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newFlagsCmd(), newUserCmd())
	return root
}
