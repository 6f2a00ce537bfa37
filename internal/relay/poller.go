package relay

import (
	"context"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
)

// Trigger names the event that requested a synchronization cycle.
type Trigger string

const (
	// TriggerConnect is the immediate sync after a connection comes up.
	TriggerConnect Trigger = "connect"
	// TriggerPush is a new-message frame from the socket.
	TriggerPush Trigger = "push"
	// TriggerPoll is the periodic safety-net sync.
	TriggerPoll Trigger = "poll"
	// TriggerServerError is a server-error frame; the client re-syncs
	// without dropping the connection.
	TriggerServerError Trigger = "server-error"
)

// CycleFunc runs one synchronization cycle: fetch undelivered messages
// and push them through the delivery pipeline. Errors are transient by
// definition; the poller logs them and waits for the next trigger.
type CycleFunc func(ctx context.Context) error

// Poller serializes synchronization cycles. At most one cycle runs at a
// time and at most one follow-up is queued; any number of triggers
// arriving during a running cycle collapse into that single follow-up.
// This keeps a burst of socket frames from stacking up concurrent
// fetches that would deliver the same messages twice.
type Poller struct {
	cycle   CycleFunc
	logger  logging.Logger
	pending chan Trigger
}

// NewPoller builds a poller around one cycle function.
func NewPoller(cycle CycleFunc, logger logging.Logger) *Poller {
	if cycle == nil {
		panic("NewPoller: cycle dependency cannot be nil")
	}
	if logger == nil {
		logger = logging.GetGlobal()
	}
	return &Poller{
		cycle:   cycle,
		logger:  logger,
		pending: make(chan Trigger, 1),
	}
}

// Trigger requests a synchronization cycle. Never blocks.
func (p *Poller) Trigger(reason Trigger) {
	select {
	case p.pending <- reason:
	default:
		// A cycle is already queued; it will cover this trigger too.
	}
}

// Run processes triggers until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case reason := <-p.pending:
			p.logger.Debug("sync cycle starting", "trigger", string(reason))
			if err := p.cycle(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.logger.Error("sync cycle failed", "trigger", string(reason), "error", err)
			}
		}
	}
}
