package segment

import (
	"io"
	"strings"
	"sync"

	"google.golang.org/api/iterator"

	"github.com/edudashpro/orbvoice/internal/runeutil"
)

// SentenceIterator iterates over the sentences of a text stream.
type SentenceIterator interface {
	// Next returns the next sentence. It returns iterator.Done after the
	// final sentence has been returned.
	Next() (string, error)
	// Close releases the iterator. Pending text is discarded.
	Close()
}

// Iterate segments the text read from r into sentences using the splitter.
// Reading happens in a background goroutine so Next can return early
// sentences while the rest of the stream is still arriving.
func (s Splitter) Iterate(r io.Reader) SentenceIterator {
	it := &readerIterator{
		splitter:    s,
		writeNotify: make(chan struct{}, 1),
	}
	go func() {
		defer close(it.writeNotify)
		if _, err := io.Copy(it, r); err != nil {
			it.closeWithError(err)
		}
	}()
	return it
}

type readerIterator struct {
	splitter Splitter

	mu          sync.Mutex
	closed      bool
	err         error
	writeNotify chan struct{}
	carry       []byte   // trailing bytes of an incomplete UTF-8 sequence
	buf         string   // text not yet segmented
	pending     []string // sentences extracted but not yet returned
}

// Write appends stream bytes. Incomplete trailing UTF-8 sequences are held
// back until the remaining bytes arrive.
func (it *readerIterator) Write(p []byte) (int, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed {
		return 0, io.ErrClosedPipe
	}
	b := append(it.carry, p...)
	n := runeutil.CompleteLen(b)
	it.buf += string(b[:n])
	it.carry = b[n:]
	select {
	case it.writeNotify <- struct{}{}:
	default:
	}
	return len(p), nil
}

func (it *readerIterator) Next() (string, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	eof := false
	for {
		if it.closed {
			if it.err != nil {
				return "", it.err
			}
			return "", iterator.Done
		}
		if len(it.pending) == 0 {
			sentences, rest := it.splitter.Extract(it.buf)
			it.pending = sentences
			it.buf = rest
		}
		if len(it.pending) > 0 {
			s := it.pending[0]
			it.pending = it.pending[1:]
			return s, nil
		}
		if eof {
			// Trailing text with no terminator is the final sentence.
			if rest := strings.TrimSpace(it.buf); rest != "" {
				it.buf = ""
				return rest, nil
			}
			return "", iterator.Done
		}
		it.mu.Unlock()
		_, ok := <-it.writeNotify
		eof = !ok
		it.mu.Lock()
	}
}

func (it *readerIterator) Close() {
	it.closeWithError(nil)
}

func (it *readerIterator) closeWithError(err error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.closed = true
	it.err = err
	it.buf = ""
	it.pending = nil
}
