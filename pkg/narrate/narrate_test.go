package narrate

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edudashpro/orbvoice/pkg/aiproxy"
	"github.com/edudashpro/orbvoice/pkg/viseme"
)

// recorder collects callback invocations for assertions.
type recorder struct {
	mu        sync.Mutex
	chunks    []string
	sentences []string
	indexes   []int
	visemes   []viseme.Event
	completes []string
	errors    []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnTextChunk: func(chunk, _ string) {
			r.mu.Lock()
			r.chunks = append(r.chunks, chunk)
			r.mu.Unlock()
		},
		OnSentence: func(s string, i int) {
			r.mu.Lock()
			r.sentences = append(r.sentences, s)
			r.indexes = append(r.indexes, i)
			r.mu.Unlock()
		},
		OnViseme: func(ev viseme.Event) {
			r.mu.Lock()
			r.visemes = append(r.visemes, ev)
			r.mu.Unlock()
		},
		OnComplete: func(full string) {
			r.mu.Lock()
			r.completes = append(r.completes, full)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errors = append(r.errors, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() (sentences []string, completes []string, errs []error, visemes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sentences...),
		append([]string(nil), r.completes...),
		append([]error(nil), r.errors...),
		len(r.visemes)
}

func sseServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			io.WriteString(w, line+"\n")
		}
	}))
}

func TestStreamEndToEnd(t *testing.T) {
	srv := sseServer(t,
		`data: {"delta":{"text":"Hello world. "}}`,
		`data: {"delta":{"text":"How are you?"}}`,
		`data: [DONE]`,
	)
	defer srv.Close()

	client := aiproxy.NewClient("tok", aiproxy.WithBaseURL(srv.URL))
	d := NewDispatcher(client)

	rec := &recorder{}
	err := d.Stream(context.Background(), Request{Chat: &aiproxy.ChatRequest{}}, rec.callbacks())
	if err != nil {
		t.Fatalf("Stream error: %v", err)
	}

	sentences, completes, errs, _ := rec.snapshot()
	want := []string{"Hello world.", "How are you?"}
	if len(sentences) != 2 || sentences[0] != want[0] || sentences[1] != want[1] {
		t.Errorf("sentences = %q; want %q", sentences, want)
	}
	if rec.indexes[0] != 0 || rec.indexes[1] != 1 {
		t.Errorf("indexes = %v; want [0 1]", rec.indexes)
	}
	if len(completes) != 1 || completes[0] != "Hello world. How are you?" {
		t.Errorf("completes = %q; want one %q", completes, "Hello world. How are you?")
	}
	if len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
	if len(rec.chunks) != 2 {
		t.Errorf("chunks = %q; want 2", rec.chunks)
	}
	if d.IsStreaming() {
		t.Error("IsStreaming() = true after completion")
	}
}

func TestStreamChatCompletionShape(t *testing.T) {
	srv := sseServer(t,
		`data: {"choices":[{"delta":{"content":"One. "}}]}`,
		`data: {"choices":[{"delta":{"content":"Two."}}]}`,
	)
	defer srv.Close()

	client := aiproxy.NewClient("tok", aiproxy.WithBaseURL(srv.URL))
	d := NewDispatcher(client)

	rec := &recorder{}
	if err := d.Stream(context.Background(), Request{Chat: &aiproxy.ChatRequest{}}, rec.callbacks()); err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	sentences, _, _, _ := rec.snapshot()
	if len(sentences) != 2 || sentences[0] != "One." || sentences[1] != "Two." {
		t.Errorf("sentences = %q", sentences)
	}
}

func TestStreamMalformedLinesSkipped(t *testing.T) {
	srv := sseServer(t,
		`data: {"delta":{"text":`, // malformed, skipped
		`: keepalive comment`,
		`data: {"usage":{"total_tokens":3}}`,
		`data: {"delta":{"text":"Fine. "}}`,
	)
	defer srv.Close()

	client := aiproxy.NewClient("tok", aiproxy.WithBaseURL(srv.URL))
	d := NewDispatcher(client)

	rec := &recorder{}
	if err := d.Stream(context.Background(), Request{Chat: &aiproxy.ChatRequest{}}, rec.callbacks()); err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	sentences, completes, errs, _ := rec.snapshot()
	if len(sentences) != 1 || sentences[0] != "Fine." {
		t.Errorf("sentences = %q; want [Fine.]", sentences)
	}
	if len(errs) != 0 || len(completes) != 1 {
		t.Errorf("completes = %q, errors = %v", completes, errs)
	}
}

func TestStreamTrailingPartialFlush(t *testing.T) {
	srv := sseServer(t,
		`data: {"delta":{"text":"Thanks for asking"}}`,
	)
	defer srv.Close()

	client := aiproxy.NewClient("tok", aiproxy.WithBaseURL(srv.URL))
	d := NewDispatcher(client)

	rec := &recorder{}
	if err := d.Stream(context.Background(), Request{Chat: &aiproxy.ChatRequest{}}, rec.callbacks()); err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	sentences, completes, _, _ := rec.snapshot()
	if len(sentences) != 1 || sentences[0] != "Thanks for asking" {
		t.Errorf("sentences = %q; want [Thanks for asking]", sentences)
	}
	if rec.indexes[0] != 0 {
		t.Errorf("index = %d; want 0", rec.indexes[0])
	}
	if len(completes) != 1 || completes[0] != "Thanks for asking" {
		t.Errorf("completes = %q", completes)
	}
}

func TestStreamHTTPErrorSurfacesOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"model offline"}}`)
	}))
	defer srv.Close()

	client := aiproxy.NewClient("tok", aiproxy.WithBaseURL(srv.URL))
	d := NewDispatcher(client)

	rec := &recorder{}
	err := d.Stream(context.Background(), Request{Chat: &aiproxy.ChatRequest{}}, rec.callbacks())
	if err == nil {
		t.Fatal("expected error")
	}
	_, completes, errs, _ := rec.snapshot()
	if len(errs) != 1 {
		t.Fatalf("errors = %v; want exactly one", errs)
	}
	if e, ok := aiproxy.AsError(errs[0]); !ok || !e.IsServerError() {
		t.Errorf("error = %v; want server *aiproxy.Error", errs[0])
	}
	if len(completes) != 0 {
		t.Errorf("OnComplete fired on error: %q", completes)
	}
}

// chanSource delivers scripted increments and honors context cancellation,
// standing in for a transport that is still waiting on the network.
type chanSource struct {
	ch chan string
}

func (c *chanSource) Next(ctx context.Context) (string, error) {
	select {
	case s, ok := <-c.ch:
		if !ok {
			return "", io.EOF
		}
		return s, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *chanSource) Close() error { return nil }

func chanOpener(src *chanSource) Opener {
	return func(ctx context.Context, req *aiproxy.ChatRequest) (Source, error) {
		return src, nil
	}
}

func TestCancelBeforeDataIsSilent(t *testing.T) {
	src := &chanSource{ch: make(chan string)}
	d := NewDispatcher(nil, WithOpener(chanOpener(src)))

	rec := &recorder{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Stream(context.Background(), Request{Chat: &aiproxy.ChatRequest{}}, rec.callbacks())
	}()

	// Wait for the stream to go live, then cancel before any data.
	for i := 0; i < 100 && !d.IsStreaming(); i++ {
		time.Sleep(time.Millisecond)
	}
	d.Cancel()

	err := <-errCh
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("Stream error = %v; want ErrCanceled", err)
	}
	sentences, completes, errs, visemes := rec.snapshot()
	if len(sentences)+len(completes)+len(errs)+visemes != 0 {
		t.Errorf("callbacks fired on cancellation: sentences=%q completes=%q errors=%v visemes=%d",
			sentences, completes, errs, visemes)
	}
	if d.IsStreaming() {
		t.Error("IsStreaming() = true after cancel")
	}
}

func TestNewStreamSupersedesOld(t *testing.T) {
	oldSrc := &chanSource{ch: make(chan string)}
	newSrc := &chanSource{ch: make(chan string, 2)}
	newSrc.ch <- "data: {\"delta\":{\"text\":\"New stream. \"}}\n"
	close(newSrc.ch)

	// Hand each Stream call its own transport, in order.
	sources := make(chan *chanSource, 2)
	sources <- oldSrc
	sources <- newSrc
	firstOpened := make(chan struct{})
	var openOnce sync.Once
	d := NewDispatcher(nil, WithOpener(func(ctx context.Context, req *aiproxy.ChatRequest) (Source, error) {
		src := <-sources
		openOnce.Do(func() { close(firstOpened) })
		return src, nil
	}))

	rec := &recorder{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Stream(context.Background(), Request{Chat: &aiproxy.ChatRequest{}}, rec.callbacks())
	}()
	<-firstOpened

	// Second stream; the newest request wins.
	d2rec := &recorder{}
	if err := d.Stream(context.Background(), Request{Chat: &aiproxy.ChatRequest{}}, d2rec.callbacks()); err != nil {
		t.Fatalf("second Stream error: %v", err)
	}

	if err := <-errCh; !errors.Is(err, ErrCanceled) {
		t.Fatalf("first Stream error = %v; want ErrCanceled", err)
	}
	sentences, completes, errs, _ := rec.snapshot()
	if len(sentences)+len(completes)+len(errs) != 0 {
		t.Errorf("superseded stream fired callbacks: %q %q %v", sentences, completes, errs)
	}
	newSentences, newCompletes, _, _ := d2rec.snapshot()
	if len(newSentences) != 1 || newSentences[0] != "New stream." {
		t.Errorf("new sentences = %q", newSentences)
	}
	if len(newCompletes) != 1 {
		t.Errorf("new completes = %q", newCompletes)
	}
}

func TestVisemeSchedulingAndDelivery(t *testing.T) {
	src := &chanSource{ch: make(chan string, 2)}
	src.ch <- "data: {\"delta\":{\"text\":\"Hi. \"}}\n"
	close(src.ch)

	d := NewDispatcher(nil, WithOpener(chanOpener(src)))
	rec := &recorder{}
	if err := d.Stream(context.Background(), Request{Chat: &aiproxy.ChatRequest{}}, rec.callbacks()); err != nil {
		t.Fatalf("Stream error: %v", err)
	}

	want := viseme.Timeline("Hi.", viseme.ModePhonetic)
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, _, _, n := rec.snapshot()
		if n >= len(want) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("delivered %d viseme events; want %d", n, len(want))
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	shapes := map[viseme.Shape]bool{}
	for _, ev := range rec.visemes {
		shapes[ev.Shape] = true
	}
	for _, ev := range want {
		if !shapes[ev.Shape] {
			t.Errorf("shape %q never delivered", ev.Shape)
		}
	}
}

func TestCancelStopsPendingVisemes(t *testing.T) {
	src := &chanSource{ch: make(chan string, 1)}
	src.ch <- "data: {\"delta\":{\"text\":\"A long enough sentence arrives here. \"}}\n"

	d := NewDispatcher(nil, WithOpener(chanOpener(src)))
	rec := &recorder{}
	cb := rec.callbacks()
	// Cancel mid-utterance, right after the first sentence is emitted.
	cb.OnSentence = func(s string, i int) {
		d.Cancel()
	}

	err := d.Stream(context.Background(), Request{Chat: &aiproxy.ChatRequest{}}, cb)
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("Stream error = %v; want ErrCanceled", err)
	}

	// Give any leaked timer ample time to fire.
	time.Sleep(500 * time.Millisecond)
	_, completes, errs, visemes := rec.snapshot()
	if visemes != 0 {
		t.Errorf("%d viseme events delivered after cancel; want 0", visemes)
	}
	if len(completes)+len(errs) != 0 {
		t.Errorf("completes = %q, errors = %v; want none", completes, errs)
	}
}

func TestCallbackPanicIsStreamError(t *testing.T) {
	src := &chanSource{ch: make(chan string, 2)}
	src.ch <- "data: {\"delta\":{\"text\":\"Boom. \"}}\n"
	close(src.ch)

	d := NewDispatcher(nil, WithOpener(chanOpener(src)))
	rec := &recorder{}
	cb := rec.callbacks()
	cb.OnSentence = func(string, int) {
		panic("bad sentence handler")
	}

	err := d.Stream(context.Background(), Request{Chat: &aiproxy.ChatRequest{}}, cb)
	if err == nil || !strings.Contains(err.Error(), "pipeline panic") {
		t.Fatalf("Stream error = %v; want pipeline panic", err)
	}
	_, completes, errs, _ := rec.snapshot()
	if len(errs) != 1 {
		t.Errorf("errors = %v; want one", errs)
	}
	if len(completes) != 0 {
		t.Errorf("OnComplete fired after panic: %q", completes)
	}
}

func TestCancelIdempotentWithoutStream(t *testing.T) {
	d := NewDispatcher(nil)
	d.Cancel()
	d.Cancel()
	if d.IsStreaming() {
		t.Error("IsStreaming() = true")
	}
}
