// Package redact strips sensitive values from nested metadata structures
// before they are persisted or forwarded to log sinks.
package redact

import "strings"

// Marker replaces every redacted value. Redaction is irreversible.
const Marker = "[REDACTED]"

// storageKeys is matched as a lowercase substring against field names
// before anything is written to the structured store.
var storageKeys = []string{
	"password",
	"token",
	"secret",
	"apikey",
	"api_key",
	"ssn",
	"creditcard",
	"credit_card",
	"cvv",
	"privatekey",
	"private_key",
	"credentials",
}

// logSinkKeys additionally strips direct PII for anything that leaves the
// process, such as console or metrics sinks. Actor email stays in the
// structured store for accountability but never reaches a generic sink.
var logSinkKeys = append([]string{"email", "phone"}, storageKeys...)

// ForStorage redacts a metadata map with the storage profile.
func ForStorage(m map[string]any) map[string]any {
	return Map(m, storageKeys)
}

// ForLogSink redacts a metadata map with the broader log-sink profile.
func ForLogSink(m map[string]any) map[string]any {
	return Map(m, logSinkKeys)
}

// Map returns a copy of m with every value whose key matches one of the
// sensitive key substrings replaced by Marker. Non-matching nested maps
// and arrays are walked recursively; the input is never mutated.
func Map(m map[string]any, sensitiveKeys []string) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sensitiveKey(k, sensitiveKeys) {
			out[k] = Marker
			continue
		}
		out[k] = value(v, sensitiveKeys)
	}
	return out
}

func value(v any, sensitiveKeys []string) any {
	switch val := v.(type) {
	case map[string]any:
		return Map(val, sensitiveKeys)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = value(item, sensitiveKeys)
		}
		return out
	default:
		return v
	}
}

func sensitiveKey(key string, sensitiveKeys []string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
