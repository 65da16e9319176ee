// Package segment splits an incrementally growing text buffer into complete,
// speakable sentences for downstream narration.
//
// The splitter favors natural prosody: full sentence boundaries win over
// clause boundaries, and clause boundaries win over forced length-based
// splits. The forced split guarantees forward progress so speech synthesis
// is never starved by text that carries no terminator at all.
//
// # Usage
//
//	var sp segment.Splitter
//	sentences, rest := sp.Extract(buf)
//	for _, s := range sentences {
//	    speak(s)
//	}
//	buf = rest // keep accumulating deltas into rest
package segment

import (
	"strings"
	"unicode"
)

// Default thresholds, in runes.
const (
	// DefaultClauseMinRunes is the minimum buffer length before clause
	// boundaries (';' and ':') are considered for splitting.
	DefaultClauseMinRunes = 60

	// DefaultMaxRunes is the buffer length at which a split is forced at
	// the last space, even without a natural boundary.
	DefaultMaxRunes = 140

	// DefaultMinForcedSplitRune is the earliest rune position a forced
	// split may cut at. A forced split with no space past this position
	// is skipped entirely.
	DefaultMinForcedSplitRune = 30
)

// Splitter extracts complete sentences from a growing text buffer. The zero
// value uses the default thresholds and is ready to use.
//
// Extract is pure: callers own the buffer, append incoming deltas to the
// returned remainder, and pass it back in. Text already returned as a
// sentence is never reprocessed, so no sentence is emitted twice.
type Splitter struct {
	// ClauseMinRunes is the minimum buffer length (in runes) before
	// clause-end boundaries are considered. Zero means DefaultClauseMinRunes.
	ClauseMinRunes int

	// MaxRunes is the buffer length (in runes) that forces a split at the
	// last space. Zero means DefaultMaxRunes.
	MaxRunes int

	// MinForcedSplitRune guards forced splits against degenerate tiny
	// fragments: the split space must sit past this rune position.
	// Zero means DefaultMinForcedSplitRune. The default is a tunable,
	// not a load-bearing constant.
	MinForcedSplitRune int
}

// Extract repeatedly splits buffer at the highest-priority boundary found
// and returns the complete sentences in order, plus the unconsumed
// remainder. Sentences are trimmed; boundary candidates that trim to the
// empty string are dropped. Concatenating the emitted text and the
// remainder reconstructs the input, modulo whitespace collapsed at
// boundaries.
func (s Splitter) Extract(buffer string) (sentences []string, remainder string) {
	clauseMin := s.ClauseMinRunes
	if clauseMin <= 0 {
		clauseMin = DefaultClauseMinRunes
	}
	maxRunes := s.MaxRunes
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	minSplit := s.MinForcedSplitRune
	if minSplit <= 0 {
		minSplit = DefaultMinForcedSplitRune
	}

	rest := buffer
	for {
		head, tail, ok := splitOnce(rest, clauseMin, maxRunes, minSplit)
		if !ok {
			break
		}
		if trimmed := strings.TrimSpace(head); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
		rest = tail
	}
	return sentences, rest
}

// splitOnce finds the single highest-priority boundary in text. It returns
// the text before the boundary, the text after it, and whether a boundary
// was found.
func splitOnce(text string, clauseMin, maxRunes, minSplit int) (head, tail string, ok bool) {
	rs := []rune(text)

	// Full sentence end: terminator followed by whitespace.
	if i := boundaryIndex(rs, isSentenceEnd); i >= 0 {
		return string(rs[:i+1]), trimLeadingSpace(rs[i+2:]), true
	}

	// Clause end, once enough text accumulated to avoid clipping short
	// clauses.
	if len(rs) >= clauseMin {
		if i := boundaryIndex(rs, isClauseEnd); i >= 0 {
			return string(rs[:i+1]), trimLeadingSpace(rs[i+2:]), true
		}
	}

	// Forced split: the buffer outgrew the limit with no natural boundary.
	// Cut at the last space within the limit, unless the only spaces sit
	// so early that splitting would emit a useless fragment.
	if len(rs) >= maxRunes {
		limit := maxRunes
		if limit > len(rs)-1 {
			limit = len(rs) - 1
		}
		for i := limit; i > minSplit; i-- {
			if rs[i] == ' ' {
				return string(rs[:i]), string(rs[i+1:]), true
			}
		}
	}

	return "", text, false
}

// boundaryIndex returns the rune index of the first rune accepted by isEnd
// that is immediately followed by whitespace, or -1.
func boundaryIndex(rs []rune, isEnd func(rune) bool) int {
	for i := 0; i+1 < len(rs); i++ {
		if isEnd(rs[i]) && unicode.IsSpace(rs[i+1]) {
			return i
		}
	}
	return -1
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClauseEnd(r rune) bool {
	return r == ';' || r == ':'
}

func trimLeadingSpace(rs []rune) string {
	return strings.TrimLeftFunc(string(rs), unicode.IsSpace)
}
