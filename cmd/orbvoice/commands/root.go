package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/edudashpro/orbvoice/pkg/aiproxy"
	"github.com/edudashpro/orbvoice/pkg/cli"
)

var (
	// Global flags
	cfgFile     string
	contextName string
	outputFile  string
	outputJSON  bool
	jqFilter    string
	verbose     bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "orbvoice",
	Short: "EduDash Pro voice assistant CLI",
	Long: `orbvoice - A command line interface for the EduDash Pro voice assistant.

This tool streams assistant replies through the chat proxy and segments
them into speakable sentences with estimated mouth-shape (viseme)
timelines, the same pipeline the classroom clients run.

Configuration is stored in ~/.orbvoice/ and supports multiple contexts,
similar to kubectl's context management.

Examples:
  # Set up a new context
  orbvoice config add-context myctx --token YOUR_TOKEN

  # Stream a narration
  orbvoice -c myctx narrate "Explain photosynthesis to a ten year old."

  # Segment a text file offline
  orbvoice split lesson.txt

  # Inspect saved turns
  orbvoice history list --json | jq '.[0].sentences'
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.orbvoice/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().StringVar(&jqFilter, "jq", "", "jq expression applied to the output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(narrateCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(historyCmd)
}

func initConfig() {
	var err error
	globalConfig, err = cli.LoadConfigWithPath(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getContext returns the context configuration to use
func getContext() (*cli.Context, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'orbvoice config use-context'")
		}
		return nil, err
	}

	return ctx, nil
}

// newProxyClient builds an aiproxy client from a CLI context.
func newProxyClient(ctx *cli.Context) *aiproxy.Client {
	var opts []aiproxy.Option
	if ctx.BaseURL != "" {
		opts = append(opts, aiproxy.WithBaseURL(ctx.BaseURL))
	}
	if ctx.Timeout > 0 {
		opts = append(opts, aiproxy.WithTimeout(time.Duration(ctx.Timeout)*time.Second))
	}
	return aiproxy.NewClient(ctx.Token, opts...)
}

// outputResult outputs the result using cli package
func outputResult(result any) error {
	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputFile,
		Filter: jqFilter,
	})
}

// printVerbose prints verbose output if enabled
func printVerbose(format string, args ...any) {
	cli.PrintVerbose(verbose, format, args...)
}
