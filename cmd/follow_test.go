package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/history"
)

// fakeFollowStore serves scripted batches of entries, one per After call.
type fakeFollowStore struct {
	mu      sync.Mutex
	lastID  int64
	batches [][]history.Entry
	afters  []int64
}

func (f *fakeFollowStore) LastRowID(_ context.Context) (int64, error) {
	return f.lastID, nil
}

func (f *fakeFollowStore) After(_ context.Context, rowID int64) ([]history.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afters = append(f.afters, rowID)
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeFollowStore) Close() error { return nil }

func (f *fakeFollowStore) afterCalls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.afters...)
}

func TestFollowPanicsWhenStoreIsNil(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic, got nil")
		}
		msg, ok := r.(string)
		if !ok {
			t.Fatalf("expected panic message as string, got %T", r)
		}
		if !strings.Contains(msg, "store dependency cannot be nil") {
			t.Fatalf("expected panic message to mention nil dependency, got %q", msg)
		}
	}()

	_ = Follow(context.Background(), FollowOptions{})
}

func TestFollowPrintsNewDeliveries(t *testing.T) {
	store := &fakeFollowStore{
		lastID: 5,
		batches: [][]history.Entry{
			{
				{RowID: 6, App: "CI", Title: "Deploy done", Body: "v1.2 is live", DeliveredAt: "2026-08-20T10:00:00Z"},
			},
			{
				{RowID: 7, App: "Backup", Body: "nightly done", DeliveredAt: "2026-08-20T10:05:00Z"},
			},
		},
	}

	tickChan := make(chan time.Time)
	defer close(tickChan)

	var buf bytes.Buffer
	opts := FollowOptions{
		Store:    store,
		Output:   &buf,
		TickChan: tickChan,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- Follow(ctx, opts)
	}()

	tickChan <- time.Now()
	tickChan <- time.Now()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Fatalf("Follow returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Follow did not exit after cancellation")
	}

	out := buf.String()
	if !strings.Contains(out, "Deploy done") {
		t.Errorf("expected output to contain the first delivery, got %q", out)
	}
	if !strings.Contains(out, "nightly done") {
		t.Errorf("expected output to contain the second delivery, got %q", out)
	}
	if !strings.Contains(out, "2026-08-20 10:00:00") {
		t.Errorf("expected formatted timestamp in output, got %q", out)
	}

	calls := store.afterCalls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 After calls, got %d", len(calls))
	}
	if calls[0] != 5 {
		t.Errorf("first After call should start at the archive end, got %d", calls[0])
	}
	if calls[1] != 6 {
		t.Errorf("second After call should resume past printed rows, got %d", calls[1])
	}
}

func TestFollowStopsOnContextCancel(t *testing.T) {
	store := &fakeFollowStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := Follow(ctx, FollowOptions{Store: store, Output: &buf, TickChan: make(chan time.Time)})
	if err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}
}

// errorAfterStore always fails the After query.
type errorAfterStore struct {
	fakeFollowStore
	calls int
}

func (e *errorAfterStore) After(_ context.Context, _ int64) ([]history.Entry, error) {
	e.calls++
	return nil, errors.New("database is locked")
}

func TestFollowKeepsPollingThroughQueryErrors(t *testing.T) {
	store := &errorAfterStore{}
	tickChan := make(chan time.Time)
	defer close(tickChan)

	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- Follow(ctx, FollowOptions{Store: store, Output: &buf, TickChan: tickChan})
	}()

	tickChan <- time.Now()
	tickChan <- time.Now()
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-errChan; err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}
	if store.calls != 2 {
		t.Errorf("expected Follow to keep polling, got %d After calls", store.calls)
	}
}
