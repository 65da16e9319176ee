// Package aiproxy provides a Go client for the assistant's streaming chat
// proxy.
//
// The proxy fronts the language model and relays its output as a
// Server-Sent-Events text stream. This package handles request shaping
// (bearer auth, the stream flag) and error decoding; event framing and
// delta extraction live in package sse.
//
// # Basic Usage
//
//	client := aiproxy.NewClient(token)
//	stream, err := client.OpenStream(ctx, &aiproxy.ChatRequest{
//	    Messages: []aiproxy.Message{{Role: "user", Content: "Explain fractions."}},
//	})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
// The returned stream is an sse.TextSource; feed it to sse.NewScanner or
// hand it to a narrate.Dispatcher.
//
// # Error Handling
//
//	if e, ok := aiproxy.AsError(err); ok && e.IsAuth() {
//	    // token expired, re-authenticate
//	}
package aiproxy
