// Package redact scrubs credential material from strings and metadata maps
// before they reach logs or client-visible error payloads.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholder replaces any substring that looks like credential material.
const Placeholder = "[REDACTED]"

// MaxScanLength caps how much input the pattern scan will examine. Values
// longer than this are replaced wholesale rather than scanned.
const MaxScanLength = 64 * 1024

// keyPattern matches known provider key signatures and generic bearer
// tokens. The anthropic alternative must precede the generic openai one so
// the longer prefix wins the alternation.
var keyPattern = regexp.MustCompile(
	`sk-ant-[A-Za-z0-9_\-]+` +
		`|sk-[A-Za-z0-9_\-]{8,}` +
		`|AIza[0-9A-Za-z_\-]{35}` +
		`|(?i:bearer)\s+[A-Za-z0-9._~+/\-]+=*`)

// sensitiveNames are matched case-insensitively as substrings of map keys.
var sensitiveNames = []string{
	"api_key", "apikey", "token", "authorization", "secret", "password",
}

// APIKeys replaces every substring matching a provider key signature with
// Placeholder. The function is idempotent: the placeholder itself matches
// no pattern.
func APIKeys(s string) string {
	if len(s) > MaxScanLength {
		return Placeholder
	}
	return keyPattern.ReplaceAllString(s, Placeholder)
}

// MapValues returns a shallow copy of m with sensitive values replaced.
// Values whose key matches a sensitive name are redacted outright; all
// other values are stringified and passed through APIKeys.
func MapValues(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sensitiveName(k) {
			out[k] = Placeholder
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = APIKeys(val)
		default:
			out[k] = APIKeys(fmt.Sprint(val))
		}
	}
	return out
}

func sensitiveName(k string) bool {
	lower := strings.ToLower(k)
	for _, name := range sensitiveNames {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}
