package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mosaic/internal/engine"
	"github.com/roach88/mosaic/internal/store"
)

// ReplayResult holds the replay outcome.
type ReplayResult struct {
	*engine.ReplayReport
	Verified bool   `json:"verified"`
	Problem  string `json:"problem,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := rootOpts

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify the stored board",
		Long: `Rebuild the board from genesis by re-applying every journal entry.

Each entry must reproduce its journaled command id, outcome and cell index,
and the rebuilt board must equal the stored board. The database is never
written.

Exit codes:
  0 - Journal replays to the stored board
  1 - Replay diverged
  2 - Command error (database not found, etc.)

Examples:
  mosaic replay --db ./mosaic.db
  mosaic replay --db ./mosaic.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	return cmd
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	report, err := engine.Replay(cmdContext(cmd), st)
	if err != nil && !engine.IsReplayDiverged(err) {
		if errors.Is(err, store.ErrNotInitialized) {
			return WrapExitError(ExitCommandError, "no board in database (run mosaic init)", err)
		}
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	result := ReplayResult{ReplayReport: report, Verified: err == nil && report.Matches()}
	switch {
	case err != nil:
		result.Problem = err.Error()
	case !report.Matches():
		result.Problem = "rebuilt board differs from stored board"
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.Verified {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    string(engine.ErrCodeReplayDiverged),
			Message: result.Problem,
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.Verified {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.ReplayReport != nil {
		fmt.Fprintf(w, "Replay Summary: board %s\n", result.BoardID)
		fmt.Fprintf(w, "  Entries: %d (%d accepted, %d rejected)\n",
			result.Entries, result.Accepted, result.Rejected)
		if verbose {
			fmt.Fprintf(w, "  Rebuilt digest: %s\n", result.Digest)
			fmt.Fprintf(w, "  Stored digest:  %s\n", result.StoredDigest)
		}
		fmt.Fprintln(w)
	}

	if result.Verified {
		fmt.Fprintln(w, "\u2713 Journal replays to the stored board")
		return nil
	}

	fmt.Fprintf(w, "\u2717 Replay verification failed: %s\n", result.Problem)
	return NewExitError(ExitFailure, "replay verification failed")
}
