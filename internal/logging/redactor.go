package logging

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

// keySegments splits lowercase keys into alphanumeric segments.
var keySegments = regexp.MustCompile(`[^a-z0-9]+`)

// redactor redacts sensitive values in log key-value pairs.
type redactor struct {
	sensitiveWords map[string]bool
}

// newRedactor creates a redactor with the default sensitive key words.
func newRedactor() *redactor {
	words := []string{"secret", "password", "token", "key", "auth", "credential"}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return &redactor{sensitiveWords: m}
}

// redact walks a flattened key-value slice ([key1, value1, key2, value2, ...])
// and replaces the value of every sensitive key with a placeholder.
// The original slice is not modified.
func (r *redactor) redact(pairs []any) []any {
	if len(pairs) == 0 {
		return pairs
	}
	result := make([]any, len(pairs))
	copy(result, pairs)
	for i := 0; i+1 < len(result); i += 2 {
		key, ok := result[i].(string)
		if !ok {
			continue
		}
		if r.isSensitive(key) {
			result[i+1] = redactedPlaceholder
		}
	}
	return result
}

// isSensitive reports whether the key contains a sensitive word as a
// separate segment. "device_secret" and "api.key" match, "keyboard"
// does not.
func (r *redactor) isSensitive(key string) bool {
	for _, part := range keySegments.Split(strings.ToLower(key), -1) {
		if r.sensitiveWords[part] {
			return true
		}
	}
	return false
}
