package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Show the current version of pushover-dc.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "pushover-dc version %s\n", version.String())
			return nil
		},
	}
}

// versionCmd represents the version command
var versionCmd = NewVersionCmd()

func init() {
	RootCmd.AddCommand(versionCmd)
}
