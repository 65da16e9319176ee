// Package sse consumes Server-Sent-Events-style model response streams.
//
// The package separates transport from framing: a [TextSource] yields raw
// decoded text increments from whatever streaming primitive the environment
// offers (chunked HTTP body, full-response polling, websocket frames), a
// [Scanner] assembles increments into complete lines, and [Delta] extracts
// the text payload carried by one `data: ` event line.
//
// Consumers that only need the text deltas of a stream compose the three:
//
//	src := sse.NewChunkSource(resp.Body)
//	sc := sse.NewScanner(src)
//	for {
//	    line, err := sc.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    if text, ok := sse.Delta(line); ok {
//	        handle(text)
//	    }
//	}
package sse
