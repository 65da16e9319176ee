package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/api/iterator"

	"github.com/edudashpro/orbvoice/pkg/segment"
)

var (
	splitClauseMin int
	splitMaxRunes  int
	splitMinForced int
)

var splitCmd = &cobra.Command{
	Use:   "split [file]",
	Short: "Segment text into sentences",
	Long: `Segment text into speakable sentences using the same boundary rules
the narration pipeline applies to streamed replies.

Reads from the given file, or from stdin when no file is given.

Examples:
  orbvoice split lesson.txt
  cat lesson.txt | orbvoice split --json
  orbvoice split lesson.txt --max-runes 100`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSplit,
}

func init() {
	splitCmd.Flags().IntVar(&splitClauseMin, "clause-min", 0, "minimum sentence length before clause breaks count")
	splitCmd.Flags().IntVar(&splitMaxRunes, "max-runes", 0, "maximum sentence length before a forced split")
	splitCmd.Flags().IntVar(&splitMinForced, "min-split", 0, "earliest position for a forced split")
}

func runSplit(cmd *cobra.Command, args []string) error {
	var r io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	splitter := segment.Splitter{
		ClauseMinRunes:     splitClauseMin,
		MaxRunes:           splitMaxRunes,
		MinForcedSplitRune: splitMinForced,
	}

	it := splitter.Iterate(r)
	defer it.Close()

	var sentences []string
	for {
		sentence, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		sentences = append(sentences, sentence)
	}

	if outputJSON || jqFilter != "" || outputFile != "" {
		return outputResult(sentences)
	}

	for i, s := range sentences {
		fmt.Printf("[%d] %s\n", i, s)
	}
	return nil
}
