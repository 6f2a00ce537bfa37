package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
)

// headFile is the on-disk representation of the delivery head.
type headFile struct {
	Highest int64 `json:"highest"`
}

// ServerHead advances the server-side head pointer.
type ServerHead interface {
	UpdateHead(ctx context.Context, id int64) error
}

// HeadTracker tracks the highest delivered message id, locally and on
// the server. The head never decreases: once a message id is recorded,
// later records of smaller ids are ignored.
type HeadTracker struct {
	path   string
	server ServerHead
	logger logging.Logger

	mu      sync.Mutex
	highest int64
}

// NewHeadTracker builds a tracker persisting to the given path.
func NewHeadTracker(path string, server ServerHead, logger logging.Logger) *HeadTracker {
	if logger == nil {
		logger = logging.GetGlobal()
	}
	return &HeadTracker{path: path, server: server, logger: logger}
}

// Load reads the persisted head from disk. A missing or unparseable
// file means no prior head; the client then refetches everything the
// server still holds. Called once at startup.
func (t *HeadTracker) Load() {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			t.logger.Warn("reading head file failed, starting without a head", "path", t.path, "error", err)
		}
		return
	}
	var f headFile
	if err := json.Unmarshal(data, &f); err != nil {
		t.logger.Warn("head file unparseable, starting without a head", "path", t.path, "error", err)
		return
	}
	t.mu.Lock()
	t.highest = f.Highest
	t.mu.Unlock()
	t.logger.Debug("head loaded", "id", f.Highest)
}

// Highest returns the current head and whether one exists.
func (t *HeadTracker) Highest() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.highest, t.highest > 0
}

// RecordDelivered durably persists a delivered message id. Recording an
// id at or below the current head is a no-op. A write failure leaves
// the in-memory head advanced; the next successful write self-corrects
// the file.
func (t *HeadTracker) RecordDelivered(id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id <= t.highest {
		return nil
	}
	t.highest = id

	data, err := json.Marshal(headFile{Highest: id})
	if err != nil {
		return fmt.Errorf("head: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("head: create state directory: %w", err)
	}
	if err := writeFileAtomic(t.path, data, 0o644); err != nil {
		return fmt.Errorf("head: write %s: %w", t.path, err)
	}
	return nil
}

// Advance moves the head past a delivered message, locally and on the
// server. A zero id means nothing was delivered and is a no-op. A
// failed server update is logged, not retried; the next advance or the
// replay after the next connect supersedes it.
func (t *HeadTracker) Advance(ctx context.Context, id int64) {
	if id == 0 {
		return
	}
	if err := t.RecordDelivered(id); err != nil {
		t.logger.Warn("persisting head failed", "id", id, "error", err)
	}
	highest, _ := t.Highest()
	if err := t.server.UpdateHead(ctx, highest); err != nil {
		t.logger.Warn("server head update failed", "id", highest, "error", err)
		return
	}
	t.logger.Debug("head advanced", "id", highest)
}

// Replay pushes the persisted head to the server. Runs right after
// authentication, before the first fetch, so an advance that died
// between the local write and the server update is repeated and the
// server drops messages this client already delivered.
func (t *HeadTracker) Replay(ctx context.Context) {
	highest, ok := t.Highest()
	if !ok {
		return
	}
	if err := t.server.UpdateHead(ctx, highest); err != nil {
		t.logger.Warn("head replay failed", "id", highest, "error", err)
		return
	}
	t.logger.Info("head replayed", "id", highest)
}

// writeFileAtomic writes data next to the target and renames it into
// place so readers never observe a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	committed = true
	return nil
}
