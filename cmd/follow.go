package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/history"
)

var followIntervalSeconds float64

// followStore is the subset of the archive the follow command tails.
type followStore interface {
	LastRowID(ctx context.Context) (int64, error)
	After(ctx context.Context, rowID int64) ([]history.Entry, error)
	Close() error
}

// openFollowStore is the function used to open the archive. Can be changed for testing.
var openFollowStore = func(path string) (followStore, error) {
	return history.NewStore(path)
}

// followCmd represents the follow command
var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Watch deliveries in real time",
	Long: `Watch deliveries in real time.

Tails the local delivery archive and prints every notification the
running client records, until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runFollow,
}

func init() {
	RootCmd.AddCommand(followCmd)

	followCmd.Flags().Float64Var(&followIntervalSeconds, "interval", 1.0, "poll interval in seconds")
}

func runFollow(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if s.HistoryKeepDays <= 0 {
		return fmt.Errorf("history is disabled; set history_keep_days in %s", s.ConfigPath())
	}
	store, err := openFollowStore(s.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	return Follow(cmd.Context(), FollowOptions{
		Store:    store,
		Interval: time.Duration(followIntervalSeconds * float64(time.Second)),
	})
}

// FollowOptions holds all parameters for following deliveries.
type FollowOptions struct {
	Store    followStore
	Interval time.Duration    // polling interval (default 1 second)
	Output   io.Writer        // where to write deliveries (default os.Stdout)
	TickChan <-chan time.Time // optional tick channel for testing (if nil, a ticker is created)
}

// Follow prints deliveries as the running client archives them. It
// runs until interrupted (Ctrl+C) or the context is cancelled.
func Follow(ctx context.Context, opts FollowOptions) error {
	if opts.Store == nil {
		panic("Follow: store dependency cannot be nil")
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Start from the current end of the archive; only new deliveries
	// are printed.
	last, err := opts.Store.LastRowID(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(opts.Output, "Watching for deliveries (Ctrl+C to stop)...")

	// Determine tick channel
	var tickChan <-chan time.Time
	var ticker *time.Ticker
	if opts.TickChan != nil {
		tickChan = opts.TickChan
	} else {
		ticker = time.NewTicker(opts.Interval)
		tickChan = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigChan:
			fmt.Fprintf(opts.Output, "\nReceived signal %v, stopping...\n", sig)
			return nil
		case <-tickChan:
			entries, err := opts.Store.After(ctx, last)
			if err != nil {
				// The archive may be mid-write; try again next tick.
				continue
			}
			for _, e := range entries {
				printEntry(opts.Output, e)
				last = e.RowID
			}
		}
	}
}
