package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/timedautomata/pkg/timedautomata/journal"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Path    string
	Session string
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect a verdict journal",
		Long: `List the sessions recorded in a journal database, or the cycle
verdicts of one session.

Examples:
  tadiscrim journal --path journal.db
  tadiscrim journal --path journal.db --session 5f0c... --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "path", "p", "", "path to the journal database (required)")
	_ = cmd.MarkFlagRequired("path")
	cmd.Flags().StringVarP(&opts.Session, "session", "s", "", "session to list entries for")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	store, err := journal.NewSQLiteStore(opts.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer store.Close()

	out := newPrinter(opts.Format, cmd.OutOrStdout())
	if opts.Session == "" {
		sessions, err := store.Sessions()
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list sessions", err)
		}
		return out.print(map[string]any{"sessions": sessions}, strings.Join(sessions, "\n"))
	}

	entries, err := store.List(opts.Session)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list entries", err)
	}
	if len(entries) == 0 {
		return WrapExitError(ExitFailure, "session not found", fmt.Errorf("no entries for %q", opts.Session))
	}
	return out.print(map[string]any{"entries": entries}, formatEntries(entries))
}

func formatEntries(entries []journal.Entry) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CYCLE\tVERDICT\tAUTOMATON\tSPAN\tATTEMPTS\tTIME")
	for _, e := range entries {
		automaton := e.Automaton
		if automaton == "" {
			automaton = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
			e.Cycle, e.Verdict, automaton, e.SpanLen, e.Attempts, e.Timestamp.Format("15:04:05.000"))
	}
	_ = tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}
