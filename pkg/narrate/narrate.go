// Package narrate drives the assistant's spoken output: it consumes a
// streaming model response, segments the text into speakable sentences as
// tokens arrive, and fans each sentence out to a speech-ready callback and
// a scheduled mouth-shape (viseme) timeline for the avatar.
//
// A Dispatcher owns at most one live stream. Starting a new stream tears
// the previous one down first, and Cancel stops the transport and every
// pending viseme timer of the active session.
//
//	d := narrate.NewDispatcher(client)
//	err := d.Stream(ctx, narrate.Request{
//	    Chat: &aiproxy.ChatRequest{Messages: msgs},
//	    Mode: viseme.ModePhonetic,
//	}, narrate.Callbacks{
//	    OnSentence: func(s string, i int) { tts.Enqueue(s) },
//	    OnViseme:   avatar.Apply,
//	})
package narrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edudashpro/orbvoice/pkg/aiproxy"
	"github.com/edudashpro/orbvoice/pkg/segment"
	"github.com/edudashpro/orbvoice/pkg/sse"
	"github.com/edudashpro/orbvoice/pkg/viseme"
)

// ErrCanceled is returned by Stream when the session was canceled, either
// explicitly via Cancel or by a newer Stream call superseding it.
// Cancellation never reaches the callbacks: no OnError, no OnComplete.
var ErrCanceled = errors.New("narrate: stream canceled")

// Request describes one narration turn.
type Request struct {
	// Chat is the upstream chat call. Required.
	Chat *aiproxy.ChatRequest

	// Mode selects the viseme estimation heuristic. The zero value is
	// viseme.ModePhonetic.
	Mode viseme.Mode
}

// Callbacks receives the events of one stream. Nil fields are skipped.
//
// OnTextChunk, OnSentence, OnComplete and OnError are invoked sequentially
// from the Stream call. OnViseme fires from timer goroutines as each
// event's offset elapses; events are scheduled in sentence order but
// delivered by wall-clock offset, so a later sentence's early event may
// arrive before an earlier sentence's late one.
type Callbacks struct {
	// OnTextChunk receives every raw text delta along with the full text
	// accumulated so far.
	OnTextChunk func(chunk, accumulated string)

	// OnSentence receives each complete sentence with its zero-based
	// index within the stream.
	OnSentence func(sentence string, index int)

	// OnViseme receives scheduled mouth-shape events as their offsets
	// elapse.
	OnViseme func(ev viseme.Event)

	// OnComplete receives the full accumulated text exactly once, after
	// the transport ended cleanly and the trailing partial sentence (if
	// any) was flushed. Not invoked on error or cancellation.
	OnComplete func(full string)

	// OnError receives the stream-fatal error, exactly once. Not invoked
	// on cancellation.
	OnError func(err error)
}

// Source is the transport of one streaming session.
type Source interface {
	sse.TextSource
	Close() error
}

// Opener opens the transport for a session. The default opener issues the
// chat call through the aiproxy client; tests and polling environments
// substitute their own.
type Opener func(ctx context.Context, req *aiproxy.ChatRequest) (Source, error)

// Dispatcher runs narration streams, one at a time.
type Dispatcher struct {
	open     Opener
	splitter segment.Splitter

	mu      sync.Mutex
	current *session
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSplitter overrides the sentence splitter thresholds.
func WithSplitter(s segment.Splitter) DispatcherOption {
	return func(d *Dispatcher) {
		d.splitter = s
	}
}

// WithOpener overrides how the session transport is opened.
func WithOpener(open Opener) DispatcherOption {
	return func(d *Dispatcher) {
		d.open = open
	}
}

// NewDispatcher creates a Dispatcher that streams through client.
func NewDispatcher(client *aiproxy.Client, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		open: func(ctx context.Context, req *aiproxy.ChatRequest) (Source, error) {
			return client.OpenStream(ctx, req)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsStreaming reports whether a stream session is currently live.
func (d *Dispatcher) IsStreaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current != nil
}

// Cancel aborts the active stream, if any, and stops its pending viseme
// timers. Idempotent; safe with no active stream.
func (d *Dispatcher) Cancel() {
	d.mu.Lock()
	sess := d.current
	d.current = nil
	d.mu.Unlock()
	if sess != nil {
		sess.stop()
	}
}

// Stream runs one narration turn to completion. Any previously active
// session is canceled first; at most one logical stream is ever live per
// dispatcher.
//
// The returned error mirrors the outcome: nil after OnComplete, ErrCanceled
// when the session was canceled (callbacks stay silent), otherwise the
// error that was handed to OnError.
func (d *Dispatcher) Stream(ctx context.Context, req Request, cb Callbacks) error {
	if req.Chat == nil {
		return errors.New("narrate: Request.Chat is required")
	}

	sessCtx, cancel := context.WithCancel(ctx)
	sess := &session{id: uuid.NewString(), cancel: cancel}

	d.mu.Lock()
	prev := d.current
	d.current = sess
	d.mu.Unlock()
	if prev != nil {
		prev.stop()
	}

	defer func() {
		// Clear the streaming flag unless a newer session took over.
		d.mu.Lock()
		if d.current == sess {
			d.current = nil
		}
		d.mu.Unlock()
		cancel()
	}()

	slog.Debug("narrate: stream start", "session", sess.id, "mode", req.Mode)
	err := d.run(sessCtx, sess, req, cb)

	switch {
	case err == nil:
		return nil
	case sess.stopped() || errors.Is(err, context.Canceled):
		// Cancellation is not an error from the caller's perspective.
		slog.Debug("narrate: stream canceled", "session", sess.id)
		sess.stop()
		return ErrCanceled
	default:
		slog.Warn("narrate: stream failed", "session", sess.id, "error", err)
		sess.stop()
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return err
	}
}

// run executes the decode/segment/dispatch loop. It returns nil only after
// OnComplete has fired.
func (d *Dispatcher) run(ctx context.Context, sess *session, req Request, cb Callbacks) (err error) {
	defer func() {
		// A fault inside the sentence/viseme pipeline (including a
		// panicking callback) is a stream-fatal error, unlike malformed
		// event lines which are skipped line by line.
		if r := recover(); r != nil {
			err = fmt.Errorf("narrate: pipeline panic: %v", r)
		}
	}()

	src, err := d.open(ctx, req.Chat)
	if err != nil {
		return err
	}
	defer src.Close()

	scanner := sse.NewScanner(src)

	var (
		accumulated strings.Builder
		buf         string
		index       int
	)

	for {
		line, lineErr := scanner.Next(ctx)
		if lineErr == io.EOF {
			break
		}
		if lineErr != nil {
			return lineErr
		}

		text, ok := sse.Delta(line)
		if !ok {
			continue
		}

		accumulated.WriteString(text)
		buf += text
		if cb.OnTextChunk != nil {
			cb.OnTextChunk(text, accumulated.String())
		}

		var sentences []string
		sentences, buf = d.splitter.Extract(buf)
		for _, sentence := range sentences {
			d.emit(sess, cb, sentence, index, req.Mode)
			index++
		}
	}

	// The transport ended: whatever text is still buffered is the final
	// sentence.
	if tail := strings.TrimSpace(buf); tail != "" {
		d.emit(sess, cb, tail, index, req.Mode)
	}

	if sess.stopped() {
		return ErrCanceled
	}
	slog.Debug("narrate: stream complete", "session", sess.id, "sentences", index, "chars", accumulated.Len())
	if cb.OnComplete != nil {
		cb.OnComplete(accumulated.String())
	}
	return nil
}

// emit hands one sentence to the speech callback and schedules its viseme
// timeline on the session.
func (d *Dispatcher) emit(sess *session, cb Callbacks, sentence string, index int, mode viseme.Mode) {
	if cb.OnSentence != nil {
		cb.OnSentence(sentence, index)
	}
	if cb.OnViseme == nil {
		return
	}
	for _, ev := range viseme.Timeline(sentence, mode) {
		sess.schedule(time.Duration(ev.OffsetMs)*time.Millisecond, ev, cb.OnViseme)
	}
}

// session is the cancellation scope of one stream: the transport context
// plus every viseme timer scheduled on the stream's behalf. Stopping the
// session aborts the transport and prevents all undelivered timers from
// firing.
type session struct {
	id     string
	cancel context.CancelFunc

	mu     sync.Mutex
	done   bool
	timers []*time.Timer
}

func (s *session) schedule(delay time.Duration, ev viseme.Event, deliver func(viseme.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.done {
			s.mu.Unlock()
			return
		}
		s.remove(t)
		s.mu.Unlock()
		deliver(ev)
	})
	s.timers = append(s.timers, t)
}

// remove drops a fired timer from the registry. Caller holds s.mu.
func (s *session) remove(t *time.Timer) {
	for i, other := range s.timers {
		if other == t {
			s.timers[i] = s.timers[len(s.timers)-1]
			s.timers = s.timers[:len(s.timers)-1]
			return
		}
	}
}

func (s *session) stop() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	timers := s.timers
	s.timers = nil
	s.mu.Unlock()

	s.cancel()
	for _, t := range timers {
		t.Stop()
	}
}

func (s *session) stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
