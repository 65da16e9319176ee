package sse

import (
	"encoding/json"
	"strings"
)

const (
	// dataPrefix marks the event lines carrying a payload.
	dataPrefix = "data: "

	// doneSentinel is the end-of-stream marker some upstreams emit.
	// It is recognized but carries no text; completion is driven by the
	// transport ending, not by the sentinel.
	doneSentinel = "[DONE]"
)

// deltaPayload covers the two payload shapes the proxy is known to emit:
// a direct delta-text object and a chat-completion-style chunk.
type deltaPayload struct {
	Delta *struct {
		Text string `json:"text"`
	} `json:"delta"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Delta extracts the text delta carried by one event line. It reports
// ok=false for lines without the data prefix, the [DONE] sentinel, payloads
// that parse but carry no text, and malformed JSON. Malformed lines never
// produce an error: a single bad event must not kill the stream.
func Delta(line string) (text string, ok bool) {
	payload, found := strings.CutPrefix(line, dataPrefix)
	if !found {
		return "", false
	}
	payload = strings.TrimSpace(payload)
	if payload == "" || payload == doneSentinel {
		return "", false
	}

	var p deltaPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", false
	}
	if p.Delta != nil && p.Delta.Text != "" {
		return p.Delta.Text, true
	}
	if len(p.Choices) > 0 && p.Choices[0].Delta.Content != "" {
		return p.Choices[0].Delta.Content, true
	}
	return "", false
}
