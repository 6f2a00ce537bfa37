package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// WriterNotifier prints notifications to a writer, one per line. Used
// for console mode and headless environments without a desktop
// notifier.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a WriterNotifier. A nil writer defaults to
// stdout.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	if w == nil {
		w = os.Stdout
	}
	return &WriterNotifier{w: w}
}

// Notify writes the payload as a single line.
func (n *WriterNotifier) Notify(_ context.Context, p Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var err error
	switch {
	case p.Title != "" && p.Body != "":
		_, err = fmt.Fprintf(n.w, "%s: %s\n", p.Title, p.Body)
	case p.Title != "":
		_, err = fmt.Fprintln(n.w, p.Title)
	default:
		_, err = fmt.Fprintln(n.w, p.Body)
	}
	return err
}
