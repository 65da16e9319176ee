// Package cli provides the shared plumbing of the orbvoice command-line
// tool: kubectl-style context configuration, output formatting with
// optional jq filtering, request file loading, and terminal styles.
//
// Configuration lives in ~/.orbvoice/config.yaml; the local data
// directory (narration history) is ~/.orbvoice/data.
//
//	cfg, err := cli.LoadConfig()
//	ctx, err := cfg.ResolveContext("")
//	cli.Output(result, cli.OutputOptions{Format: cli.FormatJSON, Filter: ".sentences"})
package cli
