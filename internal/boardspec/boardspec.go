// Package boardspec loads board definitions written in CUE.
//
// A definition file sets fields of the top-level board struct:
//
//	board: {
//		ttl:       1800
//		tile_size: 16
//		center:    [0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0]
//	}
//
// Every field is optional. The file is unified with a closed schema, so
// unknown fields and out-of-range values are rejected with their position.
package boardspec

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/ir"
)

// MaxTileSize bounds tile_size.
const MaxTileSize = 4096

const schemaSource = `
#Board: {
	ttl:       *1800 | (int & >0)
	tile_size: *16 | (int & >0 & <=4096)
	center?:   [...(int & >=0 & <=255)]
}

board: #Board
`

// Spec is a compiled board definition.
type Spec struct {
	TTL      int64
	TileSize int
	Center   ir.Tile
}

// Config converts the spec into board construction parameters.
func (s *Spec) Config() board.Config {
	return board.Config{
		TTL:      s.TTL,
		TileSize: s.TileSize,
		Center:   s.Center.Clone(),
	}
}

// Default returns the spec an empty definition compiles to.
func Default() *Spec {
	return &Spec{
		TTL:      board.DefaultTTL,
		TileSize: ir.DefaultTileSize,
		Center:   ir.EmptyTile(ir.DefaultTileSize),
	}
}

// LoadFile reads and compiles the definition at path.
func LoadFile(path string) (*Spec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read board definition: %w", err)
	}
	return Parse(src, path)
}

// Parse compiles a definition from source. filename is used only for error
// positions.
func Parse(src []byte, filename string) (*Spec, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("mosaic/schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("board schema: %w", err)
	}

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.Unify(user)
	return Compile(unified.LookupPath(cue.ParsePath("board")))
}

// Compile converts a CUE value holding the board struct into a Spec.
//
// The value is expected to already be unified with the schema; Compile
// applies the same range checks itself so hand-built values are safe too.
func Compile(v cue.Value) (*Spec, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: "board", Message: "board is required"}
	}
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := Default()
	var center cue.Value
	hasCenter := false

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		f := iter.Value()
		if d, ok := f.Default(); ok {
			f = d
		}
		switch name := iter.Selector().String(); name {
		case "ttl":
			ttl, err := f.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if ttl <= 0 {
				return nil, &CompileError{Field: name, Message: fmt.Sprintf("must be positive, got %d", ttl), Pos: f.Pos()}
			}
			spec.TTL = ttl
		case "tile_size":
			size, err := f.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if size <= 0 || size > MaxTileSize {
				return nil, &CompileError{Field: name, Message: fmt.Sprintf("must be in 1..%d, got %d", MaxTileSize, size), Pos: f.Pos()}
			}
			spec.TileSize = int(size)
		case "center":
			center, hasCenter = f, true
		default:
			return nil, &CompileError{Field: name, Message: "unknown field", Pos: f.Pos()}
		}
	}

	spec.Center = ir.EmptyTile(spec.TileSize)
	if hasCenter {
		tile, err := parseCenter(center)
		if err != nil {
			return nil, err
		}
		if len(tile) != spec.TileSize {
			return nil, &CompileError{
				Field:   "center",
				Message: fmt.Sprintf("has %d values, tile_size is %d", len(tile), spec.TileSize),
				Pos:     center.Pos(),
			}
		}
		spec.Center = tile
	}

	return spec, nil
}

func parseCenter(v cue.Value) (ir.Tile, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var tile ir.Tile
	for i := 0; iter.Next(); i++ {
		n, err := iter.Value().Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if n < 0 || n > 255 {
			return nil, &CompileError{
				Field:   fmt.Sprintf("center[%d]", i),
				Message: fmt.Sprintf("must be in 0..255, got %d", n),
				Pos:     iter.Value().Pos(),
			}
		}
		tile = append(tile, uint8(n))
	}
	if tile == nil {
		tile = ir.Tile{}
	}
	return tile, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Field: "cue", Message: first.Error()}
}
