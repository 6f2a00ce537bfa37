//go:build integration
// +build integration

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/history"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/notify"
	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/relay"
)

// silentConn is a socket that accepts the login and then stays quiet.
// Sync cycles come from the connect trigger alone.
type silentConn struct {
	mu     sync.Mutex
	writes []string
}

func (c *silentConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	<-ctx.Done()
	return 0, nil, ctx.Err()
}

func (c *silentConn) Write(_ context.Context, _ websocket.MessageType, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, string(p))
	return nil
}

func (c *silentConn) Close(websocket.StatusCode, string) error { return nil }

func (c *silentConn) loginFrame() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.writes) == 0 {
		return ""
	}
	return c.writes[0]
}

// relayAPI fakes the two message endpoints the engine talks to: the
// fetch serves a fixed batch once, the head update records what the
// client reported.
type relayAPI struct {
	mu         sync.Mutex
	served     bool
	serverHead string
}

func (a *relayAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/1/messages.json":
		a.mu.Lock()
		served := a.served
		a.served = true
		a.mu.Unlock()
		if served {
			fmt.Fprint(w, `{"messages":[]}`)
			return
		}
		fmt.Fprint(w, `{"messages":[`+
			`{"id":20,"title":"Build","message":"deploy finished","app":"CI","aid":7,"date":1755856800,"priority":0},`+
			`{"id":21,"title":"Monitor","message":"disk almost full","app":"Ops","aid":8,"date":1755856860,"priority":1}`+
			`]}`)
	case r.Method == http.MethodPost && r.URL.Path == "/1/devices/device-1/update_highest_message.json":
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.mu.Lock()
		a.serverHead = r.PostFormValue("message")
		a.mu.Unlock()
		fmt.Fprint(w, `{"status":1}`)
	default:
		http.NotFound(w, r)
	}
}

func (a *relayAPI) headValue() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.serverHead
}

// archiveAdapter mirrors the production mapping from delivered messages
// to archive entries.
type archiveAdapter struct {
	store *history.Store
}

func (a *archiveAdapter) Record(ctx context.Context, msg relay.Message, deliveredAt time.Time) error {
	return a.store.Record(ctx, history.Entry{
		MessageID:   msg.ID,
		App:         msg.App,
		Title:       msg.Title,
		Body:        msg.Body,
		Priority:    msg.Priority,
		Acked:       msg.Acked,
		DeliveredAt: deliveredAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

func TestEngineDeliversFetchedMessages(t *testing.T) {
	api := &relayAPI{}
	server := httptest.NewServer(api)
	defer server.Close()

	dir := t.TempDir()
	headPath := filepath.Join(dir, "head.json")
	logger := logging.NewNoop()

	client := relay.NewClient(relay.ClientConfig{
		BaseURL:  server.URL,
		DeviceID: "device-1",
		Secret:   "secret-1",
		Logger:   logger,
	})
	head := relay.NewHeadTracker(headPath, client, logger)
	head.Load()

	store, err := history.NewStore(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("Failed to open history store: %v", err)
	}
	defer store.Close()

	out := &syncBuffer{}
	conn := &silentConn{}
	engine := relay.NewEngine(relay.EngineConfig{
		Dial: func(ctx context.Context) (relay.Conn, error) {
			return conn, nil
		},
		Client:       client,
		Head:         head,
		Notifier:     notify.NewWriterNotifier(out),
		Archive:      &archiveAdapter{store: store},
		KeepAlive:    time.Hour,
		PollInterval: time.Hour,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- engine.Run(ctx)
	}()

	// The head report runs after the whole batch is delivered, so it is
	// the sign that delivery, persistence, and archiving all finished.
	waitFor(t, "the head to reach the last message", func() bool {
		return api.headValue() == "21"
	})

	cancel()
	select {
	case err := <-errChan:
		if err != nil {
			t.Fatalf("engine.Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("engine did not exit after cancellation")
	}

	if got := conn.loginFrame(); got != "login:device-1:secret-1\n" {
		t.Errorf("Expected login frame first, got %q", got)
	}

	output := out.String()
	first := strings.Index(output, "deploy finished")
	second := strings.Index(output, "disk almost full")
	if first == -1 || second == -1 {
		t.Fatalf("Expected both messages in output, got: %s", output)
	}
	if first > second {
		t.Errorf("Expected oldest message delivered first, got: %s", output)
	}

	data, err := os.ReadFile(headPath)
	if err != nil {
		t.Fatalf("Failed to read head file: %v", err)
	}
	if !strings.Contains(string(data), `"highest":21`) {
		t.Errorf("Expected head file to record id 21, got %s", data)
	}

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Failed to count archived deliveries: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 archived deliveries, got %d", count)
	}
}
