// Command diary runs the diary API server and its management commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "diary",
		Short:         "Personal diary service with subscription billing",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedPlansCmd(),
		newProvisionUserCmd(),
		newAssignPlanCmd(),
		newCheckSubscriptionsCmd(),
		newSendRemindersCmd(),
		newResetUsageCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
