package utils

import "strings"

// SplitKeyValue splits an assignment such as "os=Linux" or "boost:shared=True".
// The key and value are trimmed, ok is false when no '=' is present or the key is empty.
func SplitKeyValue(assignment string) (key, value string, ok bool) {
	key, value, found := strings.Cut(assignment, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}
