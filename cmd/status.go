package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/history"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/relay"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/version"
)

var (
	statusLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	statusDimStyle   = lipgloss.NewStyle().Faint(true)
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show device registration and local state",
	Long: `Show device registration and local state.

Reads the config file and the state directory without connecting to
the relay.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printField := func(label, value string) {
		fmt.Fprintf(out, "%s %s\n", statusLabelStyle.Render(fmt.Sprintf("%-12s", label)), value)
	}

	printField("Version", version.String())
	printField("Config", s.ConfigPath())

	if s.DeviceID == "" {
		printField("Device", statusDimStyle.Render(`not registered (run "pushover-dc setup")`))
	} else {
		printField("Device", fmt.Sprintf("%s (id %s)", s.DeviceName, s.DeviceID))
	}

	printField("API", s.APIURL)
	printField("Socket", s.SocketURL)
	printField("State dir", s.StateDir)

	head := relay.NewHeadTracker(s.HeadPath(), nil, logging.NewNoop())
	head.Load()
	if highest, ok := head.Highest(); ok {
		printField("Head", fmt.Sprintf("%d", highest))
	} else {
		printField("Head", statusDimStyle.Render("none"))
	}

	if s.IconCacheDir != "" {
		printField("Icon cache", s.IconCacheDir)
	} else {
		printField("Icon cache", statusDimStyle.Render("disabled"))
	}

	if s.HistoryKeepDays > 0 {
		detail := fmt.Sprintf("%s (keep %d days)", s.HistoryPath(), s.HistoryKeepDays)
		if _, err := os.Stat(s.HistoryPath()); err == nil {
			if store, err := history.NewStore(s.HistoryPath()); err == nil {
				if n, err := store.Count(cmd.Context()); err == nil {
					detail = fmt.Sprintf("%d deliveries, keep %d days", n, s.HistoryKeepDays)
				}
				_ = store.Close()
			}
		}
		printField("History", detail)
	} else {
		printField("History", statusDimStyle.Render("disabled"))
	}

	return nil
}
