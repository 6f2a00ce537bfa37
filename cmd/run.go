package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/history"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/imagecache"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/notify"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/relay"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/settings"
)

var runConsole bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the relay and deliver notifications",
	Long: `Connect to the relay and deliver notifications.

The client holds a persistent connection to the notification relay,
fetches messages the moment they are announced, shows each one as a
desktop notification, and confirms delivery back to the server. It
runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		if err := s.Validate(); err != nil {
			return err
		}
		if err := initLogging(s); err != nil {
			return err
		}
		return runClient(cmd.Context(), s, runConsole)
	},
}

func init() {
	RootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runConsole, "console", false, "print notifications to stdout instead of showing desktop notifications")
}

// runClient assembles the engine from settings and runs it until the
// context is cancelled or a termination signal arrives.
func runClient(ctx context.Context, s *settings.Settings, console bool) error {
	logger := logging.GetGlobal()

	client := relay.NewClient(relay.ClientConfig{
		BaseURL:  s.APIURL,
		DeviceID: s.DeviceID,
		Secret:   s.Secret,
		Timeout:  s.RequestTimeout,
		Logger:   logger,
	})

	head := relay.NewHeadTracker(s.HeadPath(), client, logger)
	head.Load()

	var notifier notify.Notifier
	if console {
		notifier = notify.NewWriterNotifier(os.Stdout)
	} else {
		notifier = notify.NewDesktopNotifier()
	}

	var icons relay.IconSource
	if s.IconCacheDir != "" {
		icons = imagecache.New(imagecache.Config{
			Dir:     s.IconCacheDir,
			BaseURL: s.IconURL,
			Timeout: s.RequestTimeout,
			Logger:  logger,
		})
	}

	var archive relay.DeliveryArchive
	if s.HistoryKeepDays > 0 {
		store, err := history.NewStore(s.HistoryPath())
		if err != nil {
			return err
		}
		defer store.Close()
		if pruned, err := store.Prune(ctx, s.HistoryKeepDays); err != nil {
			logger.Warn("history prune failed", "error", err)
		} else if pruned > 0 {
			logger.Info("history pruned", "deleted", pruned)
		}
		archive = &historyArchive{store: store}
	}

	engine := relay.NewEngine(relay.EngineConfig{
		Dial:         relay.Dialer(s.SocketURL),
		Client:       client,
		Head:         head,
		Notifier:     notifier,
		Icons:        icons,
		Archive:      archive,
		KeepAlive:    s.KeepAliveTimeout,
		PollInterval: s.PollInterval,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	logger.Info("client starting",
		"device_id", s.DeviceID,
		"device_name", s.DeviceName,
		"socket_url", s.SocketURL,
	)
	return engine.Run(ctx)
}

// historyArchive adapts the history store to the delivery pipeline.
type historyArchive struct {
	store *history.Store
}

func (a *historyArchive) Record(ctx context.Context, msg relay.Message, deliveredAt time.Time) error {
	return a.store.Record(ctx, history.Entry{
		MessageID:   msg.ID,
		App:         msg.App,
		Title:       msg.Title,
		Body:        msg.Body,
		Priority:    msg.Priority,
		Acked:       msg.Acked,
		SentAt:      formatUnix(msg.SentAt),
		DeliveredAt: deliveredAt.UTC().Format(timestampLayout),
	})
}

const timestampLayout = "2006-01-02T15:04:05Z"

func formatUnix(sec int64) string {
	if sec == 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format(timestampLayout)
}
