package notify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/cuyler-at-scribe/pushover-desktop-client/internal/logging"
)

// DefaultTimeout bounds a single notifier command invocation.
const DefaultTimeout = 10 * time.Second

// defaultAppName is shown by desktop environments as the notification
// source.
const defaultAppName = "Pushover"

// CommandRunner executes a notifier command. Abstracted so tests can
// capture invocations without spawning processes.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, stderr string, err error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// DesktopNotifier shells out to the platform notification command:
// notify-send on Linux and friends, osascript on macOS.
type DesktopNotifier struct {
	runner  CommandRunner
	goos    string
	appName string
	timeout time.Duration
	logger  logging.Logger
}

// DesktopOption is a functional option for configuring a DesktopNotifier.
type DesktopOption func(*DesktopNotifier)

// WithRunner replaces the command runner.
func WithRunner(r CommandRunner) DesktopOption {
	return func(n *DesktopNotifier) {
		n.runner = r
	}
}

// WithTimeout sets the per-notification command timeout.
func WithTimeout(timeout time.Duration) DesktopOption {
	return func(n *DesktopNotifier) {
		n.timeout = timeout
	}
}

// WithPlatform overrides the platform the notifier command is chosen
// for.
func WithPlatform(goos string) DesktopOption {
	return func(n *DesktopNotifier) {
		n.goos = goos
	}
}

// NewDesktopNotifier creates a DesktopNotifier with the given options.
func NewDesktopNotifier(opts ...DesktopOption) *DesktopNotifier {
	n := &DesktopNotifier{
		runner:  execRunner{},
		goos:    runtime.GOOS,
		appName: defaultAppName,
		timeout: DefaultTimeout,
		logger:  logging.GetGlobal(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify renders one notification. The spawned command is bounded by
// the configured timeout so a hung notifier never stalls delivery of
// the rest of the batch.
func (n *DesktopNotifier) Notify(ctx context.Context, p Payload) error {
	name, args := n.command(p)

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	start := time.Now()
	_, stderr, err := n.runner.Run(ctx, name, args...)
	if err != nil {
		if msg := strings.TrimSpace(stderr); msg != "" {
			return fmt.Errorf("notify: %s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("notify: %s: %w", name, err)
	}
	n.logger.Debug("notification shown", "command", name, "duration", time.Since(start))
	return nil
}

// command builds the platform notifier invocation for a payload.
func (n *DesktopNotifier) command(p Payload) (string, []string) {
	switch n.goos {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s",
			appleScriptString(p.Body), appleScriptString(p.Title))
		return "osascript", []string{"-e", script}
	default:
		args := []string{"--app-name", n.appName}
		if p.Icon != "" {
			args = append(args, "--icon", p.Icon)
		}
		args = append(args, p.Title)
		if p.Body != "" {
			args = append(args, p.Body)
		}
		return "notify-send", args
	}
}

// appleScriptString quotes a string for inline AppleScript.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
