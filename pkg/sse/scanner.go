package sse

import (
	"context"
	"io"
	"strings"
)

// Scanner assembles the increments of a TextSource into complete lines.
// The trailing, possibly incomplete line of each increment is carried over
// until its terminator arrives; at end of stream the carry is flushed as a
// final line so an unterminated last event is not lost.
type Scanner struct {
	src     TextSource
	pending []string
	carry   string
	eof     bool
}

// NewScanner returns a Scanner over src.
func NewScanner(src TextSource) *Scanner {
	return &Scanner{src: src}
}

// Next returns the next complete line, without its terminator. It returns
// io.EOF after the final line.
func (s *Scanner) Next(ctx context.Context) (string, error) {
	for {
		if len(s.pending) > 0 {
			line := s.pending[0]
			s.pending = s.pending[1:]
			return strings.TrimSuffix(line, "\r"), nil
		}
		if s.eof {
			return "", io.EOF
		}

		inc, err := s.src.Next(ctx)
		if err == io.EOF {
			s.eof = true
			if s.carry != "" {
				line := s.carry
				s.carry = ""
				return strings.TrimSuffix(line, "\r"), nil
			}
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}

		parts := strings.Split(s.carry+inc, "\n")
		s.carry = parts[len(parts)-1]
		s.pending = parts[:len(parts)-1]
	}
}
