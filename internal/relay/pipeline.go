package relay

import (
	"context"
	"time"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/notify"
)

const (
	iconExt        = ".png"
	firstPartyIcon = "pushover.png"
	fallbackIcon   = "default.png"
)

// IconSource resolves an icon name to a local image path. A false
// return means no icon; delivery proceeds without one.
type IconSource interface {
	Resolve(ctx context.Context, name string) (string, bool)
}

// DeliveryArchive records delivered messages for local history.
type DeliveryArchive interface {
	Record(ctx context.Context, msg Message, deliveredAt time.Time) error
}

// PipelineConfig configures the delivery pipeline.
type PipelineConfig struct {
	Notifier notify.Notifier
	Head     *HeadTracker
	// Icons is optional; without it messages render without icons.
	Icons IconSource
	// Archive is optional; without it deliveries are not recorded.
	Archive DeliveryArchive
	Logger  logging.Logger
}

// Pipeline turns fetched messages into desktop notifications and moves
// the head past everything it delivered.
type Pipeline struct {
	notifier notify.Notifier
	head     *HeadTracker
	icons    IconSource
	archive  DeliveryArchive
	logger   logging.Logger
}

// NewPipeline builds a delivery pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Notifier == nil {
		panic("NewPipeline: notifier dependency cannot be nil")
	}
	if cfg.Head == nil {
		panic("NewPipeline: head tracker dependency cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobal()
	}
	return &Pipeline{
		notifier: cfg.Notifier,
		head:     cfg.Head,
		icons:    cfg.Icons,
		archive:  cfg.Archive,
		logger:   logger,
	}
}

// Process delivers a batch of messages strictly in order. A failed
// delivery is logged and skipped; the message stays on the server
// because the head only advances past the last message in the batch
// that was actually delivered. Earlier successes are still persisted
// immediately, so a crash mid-batch never redelivers them.
func (p *Pipeline) Process(ctx context.Context, msgs []Message) {
	var lastDelivered int64
	for _, msg := range msgs {
		payload := p.buildPayload(ctx, msg)
		if err := p.notifier.Notify(ctx, payload); err != nil {
			p.logger.Error("notification failed, message stays queued",
				"id", msg.ID, "app", msg.App, "error", err)
			continue
		}
		lastDelivered = msg.ID
		p.logger.Debug("delivered", "id", msg.ID, "app", msg.App)

		if err := p.head.RecordDelivered(msg.ID); err != nil {
			p.logger.Warn("persisting delivered id failed", "id", msg.ID, "error", err)
		}
		if p.archive != nil {
			if err := p.archive.Record(ctx, msg, time.Now()); err != nil {
				p.logger.Warn("archiving delivery failed", "id", msg.ID, "error", err)
			}
		}
	}
	p.head.Advance(ctx, lastDelivered)
}

// buildPayload renders a message for the notifier. The title falls back
// to the app name, an empty body is omitted, and icon resolution
// failures degrade to no icon.
func (p *Pipeline) buildPayload(ctx context.Context, msg Message) notify.Payload {
	payload := notify.Payload{Title: msg.Title, Body: msg.Body}
	if payload.Title == "" {
		payload.Title = msg.App
	}
	if p.icons != nil {
		if path, ok := p.icons.Resolve(ctx, iconName(msg)); ok {
			payload.Icon = path
		}
	}
	return payload
}

// iconName picks the icon file for a message: the sender's own icon
// when it has one, the first-party icon for relay-service messages,
// and the generic icon otherwise.
func iconName(msg Message) string {
	switch {
	case msg.Icon != "":
		return msg.Icon + iconExt
	case msg.AppID == firstPartyAppID:
		return firstPartyIcon
	default:
		return fallbackIcon
	}
}
