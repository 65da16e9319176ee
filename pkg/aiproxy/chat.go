package aiproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/edudashpro/orbvoice/pkg/sse"
)

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes one assistant chat call.
type ChatRequest struct {
	// Model optionally overrides the proxy's default model.
	Model string `json:"model,omitempty"`

	// Messages is the conversation history, oldest first.
	Messages []Message `json:"messages"`

	// Temperature, when non-zero, overrides the proxy default.
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens, when non-zero, caps the response length.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// ChatResponse is the non-streaming completion result.
type ChatResponse struct {
	Text    string `json:"text,omitempty"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices,omitempty"`
}

// Content returns the response text regardless of which shape the proxy
// used.
func (r *ChatResponse) Content() string {
	if r.Text != "" {
		return r.Text
	}
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// Stream is a live streaming chat response. It implements sse.TextSource;
// Close must be called when done.
type Stream struct {
	resp *http.Response
	src  *sse.ChunkSource
}

var _ sse.TextSource = (*Stream)(nil)

// Next returns the next decoded text increment of the response body.
func (s *Stream) Next(ctx context.Context) (string, error) {
	return s.src.Next(ctx)
}

// Close aborts or releases the underlying response body. Safe to call more
// than once.
func (s *Stream) Close() error {
	return s.resp.Body.Close()
}

// OpenStream starts a streaming chat call. The request body is the chat
// request merged with {"stream": true}. Non-2xx responses are drained and
// returned as a typed *Error.
//
// The stream stays open until the model finishes, the context ends, or
// Close is called.
func (c *Client) OpenStream(ctx context.Context, req *ChatRequest) (*Stream, error) {
	streamReq := struct {
		*ChatRequest
		Stream bool `json:"stream"`
	}{
		ChatRequest: req,
		Stream:      true,
	}

	data, err := json.Marshal(streamReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.baseURL+chatPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.config.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read error response: %w", err)
		}
		return nil, parseError(body, resp.StatusCode)
	}

	return &Stream{
		resp: resp,
		src:  sse.NewChunkSource(resp.Body),
	}, nil
}

// Complete performs a one-shot, non-streaming chat call.
func (c *Client) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.baseURL+chatPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.config.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseError(body, resp.StatusCode)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &chatResp, nil
}
