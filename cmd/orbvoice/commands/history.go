package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/edudashpro/orbvoice/pkg/cli"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect saved narration turns",
	Long: `Inspect narration turns saved with 'narrate --save'.

Turns are stored locally in ~/.orbvoice/data/history.`,
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved turns, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()

		turns, err := log.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		if outputJSON || jqFilter != "" || outputFile != "" {
			return outputResult(turns)
		}

		if len(turns) == 0 {
			fmt.Println("No saved turns")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tSENTENCES\tPROMPT")
		for _, turn := range turns {
			status := fmt.Sprintf("%d", len(turn.Sentences))
			if turn.Canceled {
				status += " (canceled)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				turn.ID, cli.FormatTime(turn.StartedAt), status, cli.Truncate(turn.Prompt, 48))
		}
		w.Flush()
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved turn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()

		turn, err := log.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return outputResult(turn)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a saved turn",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := log.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Turn %q deleted", args[0])
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of turns to list")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}
