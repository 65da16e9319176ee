package sse

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edudashpro/orbvoice/internal/runeutil"
)

// TextSource yields successive decoded text increments of a streamed
// response. Next returns io.EOF once the stream has ended cleanly; any
// other error is a transport failure. Implementations are not safe for
// concurrent use.
type TextSource interface {
	Next(ctx context.Context) (string, error)
}

// ChunkSource decodes an incremental byte stream (typically a chunked HTTP
// response body) into text. Multi-byte UTF-8 sequences split across reads
// are carried over to the next read, so returned increments always contain
// whole runes.
type ChunkSource struct {
	r     io.Reader
	buf   []byte
	carry []byte
}

// NewChunkSource returns a ChunkSource reading from r. The caller remains
// responsible for closing r.
func NewChunkSource(r io.Reader) *ChunkSource {
	return &ChunkSource{r: r, buf: make([]byte, 4096)}
}

// Next returns the next decoded text increment.
func (s *ChunkSource) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := s.r.Read(s.buf)
		if n > 0 {
			b := append(s.carry, s.buf[:n]...)
			complete := runeutil.CompleteLen(b)
			s.carry = append([]byte(nil), b[complete:]...)
			if complete > 0 {
				return string(b[:complete]), nil
			}
			continue
		}
		if err == nil {
			continue
		}
		if err == io.EOF && len(s.carry) > 0 {
			// Stream ended inside a rune; surface the bytes as-is
			// rather than dropping them.
			rest := string(s.carry)
			s.carry = nil
			return rest, nil
		}
		return "", err
	}
}

// Snapshot reports the full response text accumulated so far and whether
// the response has finished. It is the polling counterpart of a chunk
// reader, for environments that only expose response-so-far snapshots.
type Snapshot func() (text string, done bool, err error)

// DefaultPollInterval is the snapshot polling cadence used when
// PollSource.Interval is zero.
const DefaultPollInterval = 25 * time.Millisecond

// PollSource adapts a [Snapshot] provider to a TextSource by diffing each
// snapshot against the last seen length and returning only the newly
// arrived suffix.
type PollSource struct {
	// Take produces the current full-response snapshot. Required.
	Take Snapshot

	// Interval is the polling cadence. Zero means DefaultPollInterval.
	Interval time.Duration

	seen int
}

// Next polls until new text arrives, the response finishes, or ctx ends.
func (s *PollSource) Next(ctx context.Context) (string, error) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	for {
		text, done, err := s.Take()
		if err != nil {
			return "", err
		}
		if len(text) > s.seen {
			inc := text[s.seen:]
			s.seen = len(text)
			return inc, nil
		}
		if done {
			return "", io.EOF
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}

// WSSource yields the text messages of a websocket connection, for
// endpoints that deliver the same event lines over a websocket instead of
// a chunked HTTP response. Each message is returned with a trailing
// newline so the frame boundary survives line scanning: websocket frames
// delimit events by framing, not by terminator.
type WSSource struct {
	conn *websocket.Conn
}

// NewWSSource returns a WSSource reading text messages from conn. The
// caller remains responsible for closing conn.
func NewWSSource(conn *websocket.Conn) *WSSource {
	return &WSSource{conn: conn}
}

// Next returns the next text message, newline-terminated. A normal or
// going-away close is reported as io.EOF.
func (s *WSSource) Next(ctx context.Context) (string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	}
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", io.EOF
			}
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return string(data) + "\n", nil
	}
}
