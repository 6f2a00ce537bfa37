package relay

import "fmt"

// Frame is a single-byte control message pushed by the relay over the
// persistent socket.
type Frame byte

const (
	// FrameNewMessage announces that undelivered messages are waiting.
	FrameNewMessage Frame = '!'
	// FrameKeepAlive is a liveness ping.
	FrameKeepAlive Frame = '#'
	// FrameReload asks the client to drop and re-establish the
	// connection.
	FrameReload Frame = 'R'
	// FrameError reports a server-side problem. The session stays up
	// but the client re-syncs to avoid missing anything.
	FrameError Frame = 'E'
	// FrameSuperseded means another client logged in with the same
	// device credentials.
	FrameSuperseded Frame = 'A'
)

// Action is what the connection manager does in response to a frame.
type Action int

const (
	// ActionNone resets the keepalive countdown and nothing else.
	ActionNone Action = iota
	// ActionSync triggers a synchronization cycle.
	ActionSync
	// ActionReconnect tears the connection down and schedules a
	// reconnect.
	ActionReconnect
)

// DecodeFrame maps a raw socket payload to its frame and action. Only
// single-byte payloads are recognized; anything else is treated as an
// unknown frame and forces a reconnect, which is the safe recovery for
// a protocol the client no longer understands.
func DecodeFrame(data []byte) (Frame, Action) {
	if len(data) != 1 {
		return 0, ActionReconnect
	}
	f := Frame(data[0])
	switch f {
	case FrameNewMessage, FrameError:
		return f, ActionSync
	case FrameKeepAlive:
		return f, ActionNone
	case FrameReload, FrameSuperseded:
		return f, ActionReconnect
	default:
		return f, ActionReconnect
	}
}

func (f Frame) String() string {
	switch f {
	case FrameNewMessage:
		return "new-message"
	case FrameKeepAlive:
		return "keepalive"
	case FrameReload:
		return "reload"
	case FrameError:
		return "server-error"
	case FrameSuperseded:
		return "superseded"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(f))
	}
}
