package isolation

import "strings"

// SanitizeKeySegment escapes the key delimiter in caller-supplied segments so
// an identifier such as "user:admin" cannot spill into an adjacent scope
// segment of the key.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// ScopedKey builds a full key under the context's prefix:
//
//	ScopedKey(c, "cache:", "profile", "42") == c.KeyPrefix("cache:") + "profile:42"
func ScopedKey(c Context, base string, parts ...string) string {
	sanitized := make([]string, len(parts))
	for i, p := range parts {
		sanitized[i] = SanitizeKeySegment(p)
	}
	return c.KeyPrefix(base) + strings.Join(sanitized, ":")
}
