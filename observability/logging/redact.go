package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

var redactionAllowlist = map[string]struct{}{
	"service":     {},
	"env":         {},
	"message":     {},
	"severity":    {},
	"timestamp":   {},
	"error":       {},
	"reason":      {},
	"component":   {},
	"program":     {},
	"digest":      {},
	"slot":        {},
	"kind":        {},
	"code":        {},
	"address":     {},
	"rpc_address": {},
	"genesis":     {},
	"telemetry":   {},
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// MaskValue returns the canonical redacted placeholder for non-empty values. Empty values
// are returned unchanged to avoid introducing noise in logs.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField returns a slog.Attr that redacts the supplied value unless the key is
// explicitly allowlisted. The original key casing is preserved for readability.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskPath keeps only the final element of a filesystem path so keystore and
// data locations can be logged without exposing the directory layout.
func MaskPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return path
	}
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return ".../" + path[idx+1:]
	}
	return path
}

// Attrs renders string pairs as slog arguments, masking every key that is not
// allowlisted.
func Attrs(fields map[string]string) []any {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, key := range keys {
		out = append(out, MaskField(key, fields[key]))
	}
	return out
}
