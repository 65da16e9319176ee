// Package runeutil holds shared UTF-8 boundary helpers for incremental
// byte streams whose reads can split multi-byte sequences.
package runeutil

import "unicode/utf8"

// CompleteLen returns the length of the longest prefix of b that ends on a
// complete UTF-8 rune boundary. Invalid sequences count as complete so a
// malformed stream surfaces its bytes instead of buffering forever.
func CompleteLen(b []byte) int {
	for i := len(b) - 1; i >= 0 && len(b)-i < utf8.UTFMax; i-- {
		if b[i] < utf8.RuneSelf {
			return i + 1
		}
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if r, _ := utf8.DecodeRune(b[i:]); r != utf8.RuneError {
			return len(b)
		}
		return i
	}
	return len(b)
}
