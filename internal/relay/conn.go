package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
)

const (
	// socketReadLimit caps inbound payloads; real frames are one byte.
	socketReadLimit = 4096
	// dialTimeout bounds connection establishment.
	dialTimeout = 30 * time.Second
	// loginWriteTimeout bounds the authentication frame write.
	loginWriteTimeout = 10 * time.Second

	inboundBuffer = 8
)

// State is the connection lifecycle state.
type State int

const (
	// StateDisconnected means no socket and no reconnect scheduled.
	StateDisconnected State = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateConnected means the socket is up and authenticated.
	StateConnected
	// StateReconnectPending means the socket is down and a reconnect
	// timer is armed.
	StateReconnectPending
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnectPending:
		return "reconnect-pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Conn is the subset of the websocket connection the manager drives.
// *websocket.Conn satisfies it; tests substitute a scripted fake.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// DialFunc opens the persistent notification socket.
type DialFunc func(ctx context.Context) (Conn, error)

// Dialer returns the production DialFunc for the given socket URL.
func Dialer(socketURL string) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		ctx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		conn, _, err := websocket.Dial(ctx, socketURL, nil)
		if err != nil {
			return nil, err
		}
		conn.SetReadLimit(socketReadLimit)
		return conn, nil
	}
}

// inboundFrame is one socket read handed from the reader goroutine to
// the manager loop.
type inboundFrame struct {
	data []byte
	err  error
}

// SyncRequester queues sync cycles in response to socket events.
// *Poller satisfies it.
type SyncRequester interface {
	Trigger(reason Trigger)
}

// ManagerConfig configures the connection manager.
type ManagerConfig struct {
	Dial     DialFunc
	DeviceID string
	Secret   string
	// KeepAlive is how long the socket may stay silent before the
	// connection counts as dead. Any frame resets the countdown.
	KeepAlive time.Duration
	// PollInterval is the periodic safety-net sync period.
	PollInterval time.Duration
	Poller       SyncRequester
	Head         *HeadTracker
	Logger       logging.Logger
}

// Manager owns the persistent socket: it connects, authenticates,
// dispatches inbound frames, enforces the keepalive window, and
// schedules reconnects. All connection state is owned by the Run loop;
// the reader goroutine only feeds frames into a channel.
type Manager struct {
	dial         DialFunc
	deviceID     string
	secret       string
	keepAlive    time.Duration
	pollInterval time.Duration
	poller       SyncRequester
	head         *HeadTracker
	logger       logging.Logger

	mu          sync.Mutex
	state       State
	lastAttempt time.Time

	// Loop-owned; never touched outside Run and its helpers.
	conn           Conn
	connCancel     context.CancelFunc
	inbound        chan inboundFrame
	keepAliveTimer *time.Timer
	reconnectTimer *time.Timer
	pollTicker     *time.Ticker
}

// NewManager builds a connection manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Dial == nil {
		panic("NewManager: dial dependency cannot be nil")
	}
	if cfg.Poller == nil {
		panic("NewManager: poller dependency cannot be nil")
	}
	if cfg.Head == nil {
		panic("NewManager: head tracker dependency cannot be nil")
	}
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 60 * time.Second
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobal()
	}
	return &Manager{
		dial:         cfg.Dial,
		deviceID:     cfg.DeviceID,
		secret:       cfg.Secret,
		keepAlive:    keepAlive,
		pollInterval: pollInterval,
		poller:       cfg.Poller,
		head:         cfg.Head,
		logger:       logger,
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) markAttempt() {
	m.mu.Lock()
	m.lastAttempt = time.Now()
	m.mu.Unlock()
}

func (m *Manager) sinceLastAttempt() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastAttempt)
}

// Run connects and then processes frames, timers, and reconnects until
// the context is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.keepAliveTimer = newStoppedTimer()
	m.reconnectTimer = newStoppedTimer()
	m.pollTicker = time.NewTicker(m.pollInterval)
	m.pollTicker.Stop()
	defer m.keepAliveTimer.Stop()
	defer m.reconnectTimer.Stop()
	defer m.pollTicker.Stop()

	m.connect(ctx)

	for {
		select {
		case <-ctx.Done():
			m.teardown(websocket.StatusNormalClosure, "client shutting down")
			m.setState(StateDisconnected)
			return ctx.Err()

		case ev := <-m.inbound:
			if ev.err != nil {
				if ctx.Err() != nil {
					continue
				}
				m.logger.Warn("socket read failed", "error", ev.err)
				m.scheduleReconnect()
				continue
			}
			m.handleFrame(ev.data)

		case <-m.keepAliveTimer.C:
			m.logger.Warn("keepalive window expired", "timeout", m.keepAlive)
			m.scheduleReconnect()

		case <-m.reconnectTimer.C:
			m.connect(ctx)

		case <-m.pollTicker.C:
			m.poller.Trigger(TriggerPoll)
		}
	}
}

// connect dials, authenticates, replays the persisted head, and starts
// the per-connection timers. A no-op when already connected or
// connecting, so overlapping triggers can never open a second socket.
func (m *Manager) connect(ctx context.Context) {
	if s := m.State(); s == StateConnected || s == StateConnecting {
		return
	}
	m.setState(StateConnecting)
	m.markAttempt()
	m.logger.Info("connecting")

	conn, err := m.dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			m.setState(StateDisconnected)
			return
		}
		m.logger.Warn("connect failed", "error", err)
		m.setState(StateDisconnected)
		m.scheduleReconnect()
		return
	}
	m.conn = conn

	login := fmt.Sprintf("login:%s:%s\n", m.deviceID, m.secret)
	writeCtx, cancel := context.WithTimeout(ctx, loginWriteTimeout)
	err = conn.Write(writeCtx, websocket.MessageText, []byte(login))
	cancel()
	if err != nil {
		m.logger.Warn("login frame write failed", "error", err)
		_ = conn.Close(websocket.StatusInternalError, "login write failed")
		m.conn = nil
		m.setState(StateDisconnected)
		m.scheduleReconnect()
		return
	}

	m.setState(StateConnected)
	m.logger.Info("connected", "device_id", m.deviceID)

	// Replay runs before the first fetch: if the previous process died
	// after delivering messages but before the server acknowledged the
	// head, the server would hand those messages out again.
	m.head.Replay(ctx)

	m.startReader(ctx)
	m.poller.Trigger(TriggerConnect)
	resetTimer(m.keepAliveTimer, m.keepAlive)
	m.pollTicker.Reset(m.pollInterval)
}

// startReader spawns the per-connection read goroutine. The goroutine
// captures its own conn and channel, so a reader from a torn-down
// connection can never feed frames into a newer epoch.
func (m *Manager) startReader(ctx context.Context) {
	connCtx, cancel := context.WithCancel(ctx)
	m.connCancel = cancel
	ch := make(chan inboundFrame, inboundBuffer)
	m.inbound = ch
	conn := m.conn

	go func() {
		for {
			_, data, err := conn.Read(connCtx)
			select {
			case ch <- inboundFrame{data: data, err: err}:
			case <-connCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
}

// handleFrame dispatches one inbound frame. Every frame, understood or
// not, proves the server is alive and resets the keepalive countdown.
func (m *Manager) handleFrame(data []byte) {
	resetTimer(m.keepAliveTimer, m.keepAlive)

	frame, action := DecodeFrame(data)
	switch action {
	case ActionSync:
		if frame == FrameError {
			m.logger.Warn("server reported an error, re-syncing", "frame", frame.String())
			m.poller.Trigger(TriggerServerError)
		} else {
			m.logger.Debug("new messages announced")
			m.poller.Trigger(TriggerPush)
		}
	case ActionNone:
		m.logger.Debug("keepalive received")
	case ActionReconnect:
		m.logger.Warn("reconnect requested", "frame", frame.String())
		m.scheduleReconnect()
	}
}

// scheduleReconnect tears the connection down and arms the reconnect
// timer. Reconnects are throttled to one per keepalive window: the
// delay is whatever remains of the window measured from the last
// connect attempt. A second call while one is pending is a no-op, so
// at most one reconnect timer is ever armed.
func (m *Manager) scheduleReconnect() {
	if m.State() == StateReconnectPending {
		return
	}
	m.teardown(websocket.StatusGoingAway, "reconnecting")
	m.setState(StateReconnectPending)

	delay := reconnectDelay(m.keepAlive, m.sinceLastAttempt())
	m.logger.Info("reconnect scheduled", "delay", delay)
	resetTimer(m.reconnectTimer, delay)
}

// teardown closes the socket and stops the per-connection timers.
// Close errors are swallowed; the connection is gone either way.
func (m *Manager) teardown(code websocket.StatusCode, reason string) {
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.conn != nil {
		_ = m.conn.Close(code, reason)
		m.conn = nil
	}
	// Dropping the channel reference also drops any frames a dying
	// reader already queued.
	m.inbound = nil
	stopTimer(m.keepAliveTimer)
	m.pollTicker.Stop()
}

// reconnectDelay throttles reconnect attempts to at most one per
// keepalive window. A connection that lived longer than the window
// reconnects immediately; one that died right after connecting waits
// out the remainder.
func reconnectDelay(keepAlive, sinceLastAttempt time.Duration) time.Duration {
	delay := keepAlive - sinceLastAttempt
	if delay < 0 {
		return 0
	}
	return delay
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return t
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}
