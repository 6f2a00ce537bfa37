// Package relay implements the client side of the push relay protocol:
// the persistent notification socket, message fetching, the delivery
// pipeline, and head tracking.
package relay

// firstPartyAppID is the reserved application id for messages sent by
// the relay service itself.
const firstPartyAppID = 1

// Message is one undelivered push notification as returned by the
// relay. Messages arrive ordered oldest to newest and are immutable
// once fetched.
type Message struct {
	// ID is the server-assigned message id. IDs increase monotonically
	// per device and drive head tracking.
	ID int64 `json:"id"`
	// Title is optional; delivery falls back to the app name.
	Title string `json:"title"`
	// Body is the message text. May be empty.
	Body string `json:"message"`
	// App is the display name of the sending application.
	App string `json:"app"`
	// AppID identifies the sending application.
	AppID int64 `json:"aid"`
	// Icon is the application icon name, without extension. Empty when
	// the application has no custom icon.
	Icon string `json:"icon"`
	// SentAt is the unix timestamp the message was sent.
	SentAt int64 `json:"date"`
	// Priority is the sender-chosen priority. Negative values are
	// low-priority, zero is normal, positive values are high.
	Priority int `json:"priority"`
	// Acked reports whether an emergency-priority message has been
	// acknowledged. Carried through to the archive, never interpreted.
	Acked int `json:"acked"`
}
