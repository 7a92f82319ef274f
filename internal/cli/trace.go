package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/mosaic/internal/ir"
	"github.com/roach88/mosaic/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Op      string // optional - filter to one op
	Outcome string // optional - filter to one outcome
	Since   int64  // only entries with seq > Since
	Limit   int    // 0 for all
}

// TraceResult holds the journal listing.
type TraceResult struct {
	Entries []store.JournalEntry `json:"entries"`
	Stats   TraceStats           `json:"stats"`
}

// TraceStats holds summary statistics for the listed entries.
type TraceStats struct {
	Total    int            `json:"total"`
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
	ByOp     map[string]int `json:"by_op"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List journaled commands",
		Long: `List the journal: every mutating command in seq order with its time,
caller, outcome and cell index. Rejected commands are listed with index -1.

Filters combine: --caller (the global flag), --op, --outcome, --since and
--limit.

Examples:
  mosaic trace --db ./mosaic.db
  mosaic trace --db ./mosaic.db --caller alice --op draw
  mosaic trace --db ./mosaic.db --outcome CAPACITY_EXCEEDED --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Op, "op", "", "only entries for this op")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only entries with this outcome (OK or an error code)")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "only entries after this seq")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "list at most this many entries")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmdContext(cmd)
	if _, err := st.BoardID(ctx); err != nil {
		return WrapExitError(ExitCommandError, "no board in database (run mosaic init)", err)
	}
	filter := store.JournalFilter{Op: opts.Op, Outcome: opts.Outcome, AfterSeq: opts.Since, Limit: opts.Limit}
	if opts.Caller != "" {
		if filter.Caller, err = ir.NormalizeCaller(opts.Caller); err != nil {
			return WrapExitError(ExitCommandError, "invalid --caller", err)
		}
	}
	entries, err := st.QueryJournal(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := TraceResult{
		Entries: entries,
		Stats:   TraceStats{ByOp: map[string]int{}},
	}
	for _, e := range entries {
		result.Stats.Total++
		result.Stats.ByOp[e.Op]++
		if e.Outcome == store.OutcomeOK {
			result.Stats.Accepted++
		} else {
			result.Stats.Rejected++
		}
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// outputTraceText prints the journal as an aligned table.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "No journal entries.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "SEQ\tNOW\tOP\tCALLER\tOUTCOME\tINDEX"
	if verbose {
		header += "\tID\tTILE"
	}
	fmt.Fprintln(tw, header)
	for _, e := range result.Entries {
		caller := string(e.Caller)
		if caller == "" {
			caller = "-"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%d", e.Seq, e.Now, e.Op, caller, e.Outcome, e.Index)
		if verbose {
			fmt.Fprintf(tw, "\t%s\t%s", e.ID, e.Tile)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d entries (%d accepted, %d rejected)\n",
		result.Stats.Total, result.Stats.Accepted, result.Stats.Rejected)
	return nil
}
