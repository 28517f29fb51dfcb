package convo

import "unicode/utf8"

// TruncateBytes returns the longest prefix of s that is at most n bytes and
// does not split a UTF-8 code point.
func TruncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	i := n
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}

// TruncateRunes clips s to at most n runes, appending an ellipsis when
// anything was removed.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "…"
		}
		count++
	}
	return s
}
