package relay

import (
	"context"
	"errors"
	"time"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/notify"
)

// EngineConfig wires the sync components together.
type EngineConfig struct {
	Dial     DialFunc
	Client   *Client
	Head     *HeadTracker
	Notifier notify.Notifier
	// Icons is optional; nil delivers notifications without icons.
	Icons IconSource
	// Archive is optional; nil disables delivery history.
	Archive      DeliveryArchive
	KeepAlive    time.Duration
	PollInterval time.Duration
	Logger       logging.Logger
}

// Engine runs the full sync loop: a connection manager feeding sync
// triggers into a single-flight poller, whose cycles fetch undelivered
// messages and push them through the delivery pipeline.
type Engine struct {
	manager *Manager
	poller  *Poller
}

// NewEngine assembles the engine. It panics when a required dependency
// is missing since that is a programming error, not a runtime one.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Client == nil {
		panic("NewEngine: client dependency cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobal()
	}

	pipeline := NewPipeline(PipelineConfig{
		Notifier: cfg.Notifier,
		Head:     cfg.Head,
		Icons:    cfg.Icons,
		Archive:  cfg.Archive,
		Logger:   logger,
	})

	poller := NewPoller(func(ctx context.Context) error {
		msgs, err := cfg.Client.FetchMessages(ctx)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		logger.Info("messages fetched", "count", len(msgs))
		pipeline.Process(ctx, msgs)
		return nil
	}, logger)

	manager := NewManager(ManagerConfig{
		Dial:         cfg.Dial,
		DeviceID:     cfg.Client.DeviceID(),
		Secret:       cfg.Client.Secret(),
		KeepAlive:    cfg.KeepAlive,
		PollInterval: cfg.PollInterval,
		Poller:       poller,
		Head:         cfg.Head,
		Logger:       logger,
	})

	return &Engine{manager: manager, poller: poller}
}

// State reports the connection state.
func (e *Engine) State() State {
	return e.manager.State()
}

// Run blocks until the context is cancelled. Cancellation is the
// normal way to stop the engine and is not reported as an error.
func (e *Engine) Run(ctx context.Context) error {
	pollerErr := make(chan error, 1)
	go func() { pollerErr <- e.poller.Run(ctx) }()

	err := e.manager.Run(ctx)
	perr := <-pollerErr

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if perr != nil && !errors.Is(perr, context.Canceled) {
		return perr
	}
	return nil
}
