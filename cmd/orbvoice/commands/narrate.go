package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edudashpro/orbvoice/pkg/aiproxy"
	"github.com/edudashpro/orbvoice/pkg/cli"
	"github.com/edudashpro/orbvoice/pkg/history"
	"github.com/edudashpro/orbvoice/pkg/kv"
	"github.com/edudashpro/orbvoice/pkg/narrate"
	"github.com/edudashpro/orbvoice/pkg/viseme"
)

var (
	narrateFile        string
	narrateModel       string
	narrateSystem      string
	narrateMode        string
	narrateShowVisemes bool
	narrateSave        bool
)

var narrateCmd = &cobra.Command{
	Use:   "narrate [prompt]",
	Short: "Stream an assistant reply as spoken sentences",
	Long: `Stream an assistant reply through the chat proxy, printing each
sentence as soon as it is complete enough to speak.

The prompt is given as an argument, or a full chat request can be
loaded from a YAML/JSON file with -f.

Examples:
  orbvoice narrate "Explain photosynthesis to a ten year old."
  orbvoice narrate -f request.yaml --mode metronome --visemes
  orbvoice narrate "Summarize today's attendance." --save`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNarrate,
}

func init() {
	narrateCmd.Flags().StringVarP(&narrateFile, "file", "f", "", "chat request file (YAML or JSON)")
	narrateCmd.Flags().StringVar(&narrateModel, "model", "", "model override")
	narrateCmd.Flags().StringVar(&narrateSystem, "system", "", "system prompt")
	narrateCmd.Flags().StringVar(&narrateMode, "mode", "", "viseme mode (phonetic or metronome)")
	narrateCmd.Flags().BoolVar(&narrateShowVisemes, "visemes", false, "print viseme events as they fire")
	narrateCmd.Flags().BoolVar(&narrateSave, "save", false, "save the turn to local history")
}

func runNarrate(cmd *cobra.Command, args []string) error {
	cliCtx, err := getContext()
	if err != nil {
		return err
	}

	chatReq, prompt, err := buildChatRequest(args)
	if err != nil {
		return err
	}

	modeName := narrateMode
	if modeName == "" {
		modeName = cliCtx.DefaultMode
	}
	mode := viseme.ModePhonetic
	if modeName != "" {
		mode, err = viseme.ParseMode(modeName)
		if err != nil {
			return err
		}
	}

	client := newProxyClient(cliCtx)
	dispatcher := narrate.NewDispatcher(client)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	styles := cli.NewStyles(cli.DefaultTheme)

	var (
		mu        sync.Mutex
		sentences []string
		fullText  string
		lastEvent time.Time
	)

	started := time.Now()
	printVerbose("streaming from %s", client.BaseURL())

	streamErr := dispatcher.Stream(ctx, narrate.Request{Chat: chatReq, Mode: mode}, narrate.Callbacks{
		OnSentence: func(sentence string, index int) {
			mu.Lock()
			sentences = append(sentences, sentence)
			mu.Unlock()
			fmt.Println(styles.SentenceLine(index, sentence))
		},
		OnViseme: func(ev viseme.Event) {
			mu.Lock()
			lastEvent = time.Now()
			mu.Unlock()
			if narrateShowVisemes {
				fmt.Println(styles.VisemeLine(ev.OffsetMs, string(ev.Shape), ev.Weight))
			}
		},
		OnComplete: func(full string) {
			mu.Lock()
			fullText = full
			mu.Unlock()
		},
	})

	canceled := errors.Is(streamErr, narrate.ErrCanceled)
	if streamErr != nil && !canceled {
		return streamErr
	}
	if canceled {
		cli.PrintWarning("narration canceled")
	}

	if narrateShowVisemes {
		waitForVisemes(&mu, &lastEvent)
	}

	printVerbose("stream finished in %s", cli.FormatDuration(int(time.Since(started).Milliseconds())))

	if narrateSave {
		turn := history.Turn{
			StartedAt: started,
			Prompt:    prompt,
			Text:      fullText,
			Sentences: sentences,
			Canceled:  canceled,
		}
		saved, err := saveTurn(cmd.Context(), turn)
		if err != nil {
			return fmt.Errorf("failed to save turn: %w", err)
		}
		cli.PrintSuccess("Saved turn %s", saved.ID)
	}

	return nil
}

// buildChatRequest assembles the upstream request from the -f file and the
// prompt argument. The prompt, when present, is appended as the final user
// message.
func buildChatRequest(args []string) (*aiproxy.ChatRequest, string, error) {
	req := &aiproxy.ChatRequest{}
	if narrateFile != "" {
		if err := cli.LoadRequest(narrateFile, req); err != nil {
			return nil, "", err
		}
	}
	if narrateModel != "" {
		req.Model = narrateModel
	}
	if narrateSystem != "" {
		req.Messages = append([]aiproxy.Message{{Role: "system", Content: narrateSystem}}, req.Messages...)
	}

	var prompt string
	if len(args) > 0 {
		prompt = args[0]
		req.Messages = append(req.Messages, aiproxy.Message{Role: "user", Content: prompt})
	} else if narrateFile != "" {
		for _, m := range req.Messages {
			if m.Role == "user" {
				prompt = m.Content
			}
		}
	}

	if len(req.Messages) == 0 {
		return nil, "", fmt.Errorf("no prompt: pass one as an argument or with -f")
	}
	return req, prompt, nil
}

// waitForVisemes blocks until the viseme timers go quiet. Timers keep firing
// after the transport drains, so the live view would cut off without this.
func waitForVisemes(mu *sync.Mutex, lastEvent *time.Time) {
	start := time.Now()
	for time.Since(start) < 10*time.Second {
		mu.Lock()
		last := *lastEvent
		mu.Unlock()
		if !last.IsZero() && time.Since(last) > 300*time.Millisecond {
			return
		}
		// No events at all after a second means none were scheduled.
		if last.IsZero() && time.Since(start) > time.Second {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// saveTurn appends a turn to the badger-backed history store.
func saveTurn(ctx context.Context, turn history.Turn) (history.Turn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log, closeStore, err := openHistory()
	if err != nil {
		return history.Turn{}, err
	}
	defer closeStore()
	return log.Append(ctx, turn)
}

// openHistory opens the shared history log under ~/.orbvoice/data.
func openHistory() (*history.Log, func() error, error) {
	paths, err := cli.NewPaths()
	if err != nil {
		return nil, nil, err
	}
	if err := paths.EnsureDataDir(); err != nil {
		return nil, nil, err
	}
	store, err := kv.NewBadger(kv.BadgerOptions{Dir: paths.DataPath("history")})
	if err != nil {
		return nil, nil, err
	}
	return history.New(store), store.Close, nil
}
