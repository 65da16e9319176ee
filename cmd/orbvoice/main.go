// Package main provides the orbvoice CLI tool.
//
// Usage:
//
//	orbvoice [flags] <command> [args]
//
// Commands:
//
//	narrate  - Stream an assistant reply as spoken sentences
//	split    - Segment text into sentences
//	history  - Inspect saved narration turns
//	config   - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.orbvoice/
//	Use 'orbvoice config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/edudashpro/orbvoice/cmd/orbvoice/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
