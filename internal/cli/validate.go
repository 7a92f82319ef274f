package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mosaic/internal/boardspec"
	"github.com/roach88/mosaic/internal/ir"
)

// BoardValidation is the validation outcome of one board definition.
type BoardValidation struct {
	File  string         `json:"file"`
	Valid bool           `json:"valid"`
	Board *CompiledBoard `json:"board,omitempty"`
	Error *ValidateIssue `json:"error,omitempty"`
}

// CompiledBoard is the board a valid definition compiles to.
type CompiledBoard struct {
	TTL      int64   `json:"ttl"`
	TileSize int     `json:"tile_size"`
	Center   ir.Tile `json:"center"`
}

// ValidateIssue locates a definition error.
type ValidateIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Boards []BoardValidation `json:"boards"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <board.cue>...",
		Short: "Validate board definitions",
		Long: `Validate CUE board definitions without touching a database.

Each file is unified with the board schema; unknown fields, out-of-range
values and a center tile of the wrong length are reported with their
position. Valid files print the board they compile to.

Exit codes:
  0 - All definitions are valid
  1 - One or more definitions are invalid`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	result := ValidationResult{Valid: true, Boards: make([]BoardValidation, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		v := validateBoardFile(file)
		if !v.Valid {
			result.Valid = false
		}
		result.Boards = append(result.Boards, v)
	}

	if opts.Format == "json" {
		return outputValidateJSON(cmd, result)
	}
	return outputValidateText(cmd, result)
}

func validateBoardFile(file string) BoardValidation {
	spec, err := boardspec.LoadFile(file)
	if err != nil {
		issue := &ValidateIssue{Field: "file", Message: err.Error()}
		var cErr *boardspec.CompileError
		if errors.As(err, &cErr) {
			issue.Field = cErr.Field
			issue.Message = cErr.Message
			if cErr.Pos.IsValid() {
				issue.Line = cErr.Pos.Line()
				issue.Column = cErr.Pos.Column()
			}
		}
		return BoardValidation{File: file, Error: issue}
	}
	return BoardValidation{
		File:  file,
		Valid: true,
		Board: &CompiledBoard{TTL: spec.TTL, TileSize: spec.TileSize, Center: spec.Center},
	}
}

func outputValidateJSON(cmd *cobra.Command, result ValidationResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.Valid {
		response.Status = "error"
		response.Error = &CLIError{Code: "E_INVALID_BOARD", Message: "board definition is invalid"}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func outputValidateText(cmd *cobra.Command, result ValidationResult) error {
	w := cmd.OutOrStdout()
	for _, b := range result.Boards {
		if b.Valid {
			fmt.Fprintf(w, "\u2713 %s (ttl %d, tile size %d)\n", b.File, b.Board.TTL, b.Board.TileSize)
			continue
		}
		fmt.Fprintf(w, "\u2717 %s\n", b.File)
		if b.Error.Line > 0 {
			fmt.Fprintf(w, "  line %d:%d: %s: %s\n", b.Error.Line, b.Error.Column, b.Error.Field, b.Error.Message)
		} else {
			fmt.Fprintf(w, "  %s: %s\n", b.Error.Field, b.Error.Message)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}
