package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactSensitiveKeys(t *testing.T) {
	r := newRedactor()

	tests := []struct {
		name     string
		key      string
		redacted bool
	}{
		{"plain secret", "secret", true},
		{"device secret", "device_secret", true},
		{"password", "password", true},
		{"api key", "api_key", true},
		{"auth token", "auth_token", true},
		{"dotted key", "relay.credential", true},
		{"uppercase", "SECRET", true},
		{"keyboard is not a key", "keyboard", false},
		{"secretive is not secret", "secretive", false},
		{"device id", "device_id", false},
		{"plain message", "message", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.redact([]any{tt.key, "value-123"})
			require.Len(t, out, 2)
			if tt.redacted {
				require.Equal(t, redactedPlaceholder, out[1])
			} else {
				require.Equal(t, "value-123", out[1])
			}
		})
	}
}

func TestRedactLeavesOriginalUntouched(t *testing.T) {
	r := newRedactor()
	pairs := []any{"secret", "raw-value"}

	out := r.redact(pairs)

	require.Equal(t, redactedPlaceholder, out[1])
	require.Equal(t, "raw-value", pairs[1])
}

func TestRedactHandlesOddAndNonStringKeys(t *testing.T) {
	r := newRedactor()

	out := r.redact([]any{42, "value", "secret", "hidden", "dangling"})
	require.Equal(t, []any{42, "value", "secret", redactedPlaceholder, "dangling"}, out)

	require.Empty(t, r.redact(nil))
}
