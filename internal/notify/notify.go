// Package notify renders delivered messages as desktop notifications.
package notify

import "context"

// Payload is one rendered notification.
type Payload struct {
	// Title is the notification headline. May be empty when the
	// message carried neither a title nor an app name.
	Title string
	// Body is the message text. Empty bodies are omitted from the
	// rendered notification.
	Body string
	// Icon is a local image path. Empty means no icon.
	Icon string
}

// Notifier is the delivery boundary. Implementations must be safe for
// sequential reuse; the pipeline never calls Notify concurrently.
type Notifier interface {
	// Notify renders one notification. An error means the message was
	// not shown to the user and must stay queued on the server.
	Notify(ctx context.Context, p Payload) error
}
