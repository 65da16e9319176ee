// Package viseme derives mouth-shape animation timelines from sentence
// text. The timelines drive a talking-avatar client in lock-step with
// synthesized speech: each event names a shape and a relative offset from
// the start of the sentence's narration.
//
// Estimation is heuristic and purely deterministic — no phoneme alignment
// from the synthesizer is involved, so the same sentence always produces
// the same timeline.
package viseme

import (
	"fmt"
	"unicode"
)

// Shape is a visual mouth position.
type Shape string

// The shape set matches the avatar client's sprite atlas.
const (
	ShapeRest   Shape = "rest"        // closed, neutral
	ShapeOpen   Shape = "open"        // open vowels: a, e
	ShapeWide   Shape = "wide"        // spread vowels: i, y
	ShapeRound  Shape = "round"       // rounded vowels: o, u, w
	ShapeBilab  Shape = "bilabial"    // m, b, p
	ShapeLabio  Shape = "labiodental" // f, v
	ShapeDental Shape = "dental"      // t, d, s, z, n, l
)

// Event is a single scheduled mouth-shape change, offset relative to the
// start of the sentence.
type Event struct {
	OffsetMs int     `json:"offset_ms"`
	Shape    Shape   `json:"shape"`
	Weight   float64 `json:"weight"`
}

// Mode selects the estimation heuristic.
type Mode string

const (
	// ModePhonetic maps letter classes to shapes with per-class
	// durations. The default.
	ModePhonetic Mode = "phonetic"

	// ModeMetronome alternates open/rest at a fixed cadence paced by the
	// estimated speech duration. Cheaper to animate; used by clients
	// without a full shape atlas.
	ModeMetronome Mode = "metronome"
)

// ParseMode converts a mode string, accepting the empty string as
// ModePhonetic.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModePhonetic:
		return ModePhonetic, nil
	case ModeMetronome:
		return ModeMetronome, nil
	}
	return "", fmt.Errorf("viseme: unknown mode %q", s)
}

// Speech pacing constants, in milliseconds. Tuned against the avatar
// client's default speaking rate.
const (
	vowelMs     = 90
	consonantMs = 60
	pauseMs     = 120
	metronomeMs = 150
)

// Timeline estimates the mouth-shape schedule for one sentence. The final
// event is always ShapeRest so the mouth closes when the sentence ends.
func Timeline(text string, mode Mode) []Event {
	switch mode {
	case ModeMetronome:
		return metronomeTimeline(text)
	default:
		return phoneticTimeline(text)
	}
}

func phoneticTimeline(text string) []Event {
	var events []Event
	offset := 0
	last := ShapeRest
	for _, r := range text {
		shape, dur := classify(r)
		if shape != last {
			events = append(events, Event{OffsetMs: offset, Shape: shape, Weight: 1})
			last = shape
		}
		offset += dur
	}
	if last != ShapeRest {
		events = append(events, Event{OffsetMs: offset, Shape: ShapeRest, Weight: 1})
	}
	return events
}

func metronomeTimeline(text string) []Event {
	total := estimateDurationMs(text)
	if total == 0 {
		return nil
	}
	var events []Event
	open := true
	for offset := 0; offset < total; offset += metronomeMs {
		shape := ShapeRest
		weight := 0.4
		if open {
			shape = ShapeOpen
			weight = 0.8
		}
		events = append(events, Event{OffsetMs: offset, Shape: shape, Weight: weight})
		open = !open
	}
	events = append(events, Event{OffsetMs: total, Shape: ShapeRest, Weight: 1})
	return events
}

// estimateDurationMs estimates how long the sentence takes to speak.
func estimateDurationMs(text string) int {
	total := 0
	for _, r := range text {
		_, dur := classify(r)
		total += dur
	}
	return total
}

// classify maps a rune to its mouth shape and estimated duration.
func classify(r rune) (Shape, int) {
	switch unicode.ToLower(r) {
	case 'a', 'e':
		return ShapeOpen, vowelMs
	case 'i', 'y':
		return ShapeWide, vowelMs
	case 'o', 'u', 'w':
		return ShapeRound, vowelMs
	case 'm', 'b', 'p':
		return ShapeBilab, consonantMs
	case 'f', 'v':
		return ShapeLabio, consonantMs
	case 't', 'd', 's', 'z', 'n', 'l':
		return ShapeDental, consonantMs
	}
	switch {
	case unicode.IsSpace(r) || unicode.IsPunct(r):
		return ShapeRest, pauseMs
	case unicode.IsLetter(r):
		return ShapeDental, consonantMs
	}
	return ShapeRest, pauseMs
}
