package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/history"
)

var historyLimit int

// historyStore is the subset of the archive the history command reads.
type historyStore interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	Close() error
}

// openHistory is the function used to open the archive. Can be changed for testing.
var openHistory = func(path string) (historyStore, error) {
	return history.NewStore(path)
}

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently delivered notifications",
	Long: `Show recently delivered notifications.

Reads the local delivery archive; the relay is never contacted. The
archive only exists when history is enabled in the config.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	RootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of deliveries to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if s.HistoryKeepDays <= 0 {
		return fmt.Errorf("history is disabled; set history_keep_days in %s", s.ConfigPath())
	}
	if _, err := os.Stat(s.HistoryPath()); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No deliveries recorded yet.")
		return nil
	}

	store, err := openHistory(s.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	printEntries(cmd.OutOrStdout(), entries)
	return nil
}

var historyAppStyle = lipgloss.NewStyle().Bold(true)

// printEntries renders deliveries oldest first, one block per message.
func printEntries(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No deliveries recorded yet.")
		return
	}
	for _, e := range entries {
		printEntry(w, e)
	}
}

func printEntry(w io.Writer, e history.Entry) {
	app := e.App
	if app == "" {
		app = "(unknown app)"
	}
	fmt.Fprintf(w, "%s  %s\n", formatArchiveTime(e.DeliveredAt), historyAppStyle.Render(app))
	if e.Title != "" {
		fmt.Fprintf(w, "  %s\n", e.Title)
	}
	if e.Body != "" {
		fmt.Fprintf(w, "  %s\n", e.Body)
	}
}

// formatArchiveTime converts the stored timestamp to display format.
func formatArchiveTime(ts string) string {
	// Expected format: "2006-01-02T15:04:05Z"
	// Convert to "2006-01-02 15:04:05"
	if len(ts) >= 20 && ts[10] == 'T' && ts[len(ts)-1] == 'Z' {
		return ts[:10] + " " + ts[11:19]
	}
	return ts
}
