package segment

import (
	"io"
	"strings"
	"testing"

	"google.golang.org/api/iterator"
)

func TestSplitterExtract(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		sentences []string
		remainder string
	}{
		{
			name:      "empty buffer",
			input:     "",
			sentences: nil,
			remainder: "",
		},
		{
			name:      "no boundary yet",
			input:     "Hello world",
			sentences: nil,
			remainder: "Hello world",
		},
		{
			name:      "terminator without trailing whitespace waits",
			input:     "Hello world.",
			sentences: nil,
			remainder: "Hello world.",
		},
		{
			name:      "single sentence",
			input:     "Hello world. ",
			sentences: []string{"Hello world."},
			remainder: "",
		},
		{
			name:      "two sentences plus partial",
			input:     "Hello world. How are you? I am",
			sentences: []string{"Hello world.", "How are you?"},
			remainder: "I am",
		},
		{
			name:      "exclamation and question",
			input:     "Wait! Really? yes",
			sentences: []string{"Wait!", "Really?"},
			remainder: "yes",
		},
		{
			name:      "newline counts as boundary whitespace",
			input:     "First line.\nSecond",
			sentences: []string{"First line."},
			remainder: "Second",
		},
		{
			name:      "consecutive boundaries emit no empty sentence",
			input:     "Hello...   World. ",
			sentences: []string{"Hello...", "World."},
			remainder: "",
		},
		{
			name:      "clause boundary below threshold is ignored",
			input:     "one; two",
			sentences: nil,
			remainder: "one; two",
		},
		{
			name: "clause boundary above threshold splits",
			input: "first part of a very long enumeration that keeps going on; " +
				"and the rest",
			sentences: []string{"first part of a very long enumeration that keeps going on;"},
			remainder: "and the rest",
		},
		{
			name: "sentence end wins over earlier clause end",
			input: "short; but the sentence continues for a while until it finally " +
				"ends here. trailing",
			sentences: []string{"short; but the sentence continues for a while until it finally ends here."},
			remainder: "trailing",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var sp Splitter
			sentences, remainder := sp.Extract(tc.input)
			if len(sentences) != len(tc.sentences) {
				t.Fatalf("got %d sentences %q; want %d %q",
					len(sentences), sentences, len(tc.sentences), tc.sentences)
			}
			for i := range sentences {
				if sentences[i] != tc.sentences[i] {
					t.Errorf("sentence[%d] = %q; want %q", i, sentences[i], tc.sentences[i])
				}
			}
			if remainder != tc.remainder {
				t.Errorf("remainder = %q; want %q", remainder, tc.remainder)
			}
		})
	}
}

func TestSplitterExtractForcedSplit(t *testing.T) {
	t.Run("no space within limit produces no split", func(t *testing.T) {
		// 200 runes, no punctuation, no space at all.
		input := strings.Repeat("a", 200)
		var sp Splitter
		sentences, remainder := sp.Extract(input)
		if len(sentences) != 0 {
			t.Errorf("got %d sentences; want 0", len(sentences))
		}
		if remainder != input {
			t.Errorf("remainder changed: got %d runes; want %d", len(remainder), len(input))
		}
	})

	t.Run("space only before minimum position produces no split", func(t *testing.T) {
		input := strings.Repeat("a", 20) + " " + strings.Repeat("b", 179)
		var sp Splitter
		sentences, remainder := sp.Extract(input)
		if len(sentences) != 0 {
			t.Errorf("got %d sentences %q; want 0", len(sentences), sentences)
		}
		if remainder != input {
			t.Errorf("remainder changed")
		}
	})

	t.Run("splits at last space within limit", func(t *testing.T) {
		// 150 runes with a single space at rune 95.
		input := strings.Repeat("a", 95) + " " + strings.Repeat("b", 54)
		var sp Splitter
		sentences, remainder := sp.Extract(input)
		if len(sentences) != 1 {
			t.Fatalf("got %d sentences; want 1", len(sentences))
		}
		if want := strings.Repeat("a", 95); sentences[0] != want {
			t.Errorf("sentence = %d runes; want 95", len(sentences[0]))
		}
		if want := strings.Repeat("b", 54); remainder != want {
			t.Errorf("remainder = %d runes; want 54", len(remainder))
		}
	})

	t.Run("prefers latest space at or before limit", func(t *testing.T) {
		input := strings.Repeat("a", 40) + " " + strings.Repeat("b", 60) + " " + strings.Repeat("c", 60)
		var sp Splitter
		sentences, remainder := sp.Extract(input)
		if len(sentences) != 1 {
			t.Fatalf("got %d sentences; want 1", len(sentences))
		}
		want := strings.Repeat("a", 40) + " " + strings.Repeat("b", 60)
		if sentences[0] != want {
			t.Errorf("sentence = %q; want %q", sentences[0], want)
		}
		if remainder != strings.Repeat("c", 60) {
			t.Errorf("remainder = %q", remainder)
		}
	})
}

// Reconstructing emitted sentences plus the remainder must preserve every
// non-whitespace character of the input, in order.
func TestSplitterExtractNoDataLoss(t *testing.T) {
	inputs := []string{
		"Hello world. How are you? Fine; thanks: really. Unterminated tail",
		strings.Repeat("word ", 60),
		"a. b. c. d. e. ",
		strings.Repeat("x", 139) + " tail here. ",
	}
	for _, input := range inputs {
		var sp Splitter
		sentences, remainder := sp.Extract(input)
		got := strings.Join(append(append([]string(nil), sentences...), remainder), "")
		squash := func(s string) string {
			return strings.Join(strings.Fields(s), "")
		}
		if squash(got) != squash(input) {
			t.Errorf("data loss for %q:\n got %q", input, got)
		}
	}
}

func TestSplitterExtractRuneSafety(t *testing.T) {
	input := "你好世界。 这是测试。 Mixed ascii 和中文. tail"
	var sp Splitter
	sentences, remainder := sp.Extract(input)
	// '。' is not an ASCII terminator; only the '.' after 中文 splits.
	if len(sentences) != 1 {
		t.Fatalf("got %d sentences %q; want 1", len(sentences), sentences)
	}
	if want := "你好世界。 这是测试。 Mixed ascii 和中文."; sentences[0] != want {
		t.Errorf("sentence = %q; want %q", sentences[0], want)
	}
	if remainder != "tail" {
		t.Errorf("remainder = %q; want %q", remainder, "tail")
	}
}

func TestSplitterCustomThresholds(t *testing.T) {
	sp := Splitter{ClauseMinRunes: 5, MaxRunes: 20, MinForcedSplitRune: 2}
	sentences, remainder := sp.Extract("one; two")
	if len(sentences) != 1 || sentences[0] != "one;" {
		t.Fatalf("got %q; want [one;]", sentences)
	}
	if remainder != "two" {
		t.Errorf("remainder = %q; want %q", remainder, "two")
	}
}

func TestIterate(t *testing.T) {
	var sp Splitter
	it := sp.Iterate(strings.NewReader("Hello world. How are you? Thanks for asking"))
	defer it.Close()

	var got []string
	for {
		s, err := it.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			t.Fatalf("Next error: %v", err)
		}
		got = append(got, s)
	}

	want := []string{"Hello world.", "How are you?", "Thanks for asking"}
	if len(got) != len(want) {
		t.Fatalf("got %q; want %q", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("sentence[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}

func TestIterateTrailingWhitespaceTrimmed(t *testing.T) {
	var sp Splitter
	it := sp.Iterate(strings.NewReader("Hello world. trailing tail  "))
	defer it.Close()

	var got []string
	for {
		s, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
		got = append(got, s)
	}

	// The flushed final sentence is trimmed on both sides, like every
	// other emitted sentence.
	want := []string{"Hello world.", "trailing tail"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %q; want %q", got, want)
	}
}

func TestIterateSplitUTF8(t *testing.T) {
	// Deliver a multi-byte rune split across writes.
	pr, pw := io.Pipe()
	var sp Splitter
	it := sp.Iterate(pr)
	defer it.Close()

	text := []byte("中文句子. done")
	go func() {
		// Split inside the first rune.
		pw.Write(text[:2])
		pw.Write(text[2:])
		pw.Close()
	}()

	s, err := it.Next()
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if s != "中文句子." {
		t.Errorf("sentence = %q; want %q", s, "中文句子.")
	}
}
