package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/cohort/internal/ir"
)

//go:embed graph.cue
var graphConstraints string

//go:embed mimic.cue
var mimicGraph string

var (
	defaultOnce  sync.Once
	defaultGraph *Graph
)

// Default returns the built-in clinical graph. It is parsed once and shared.
func Default() *Graph {
	defaultOnce.Do(func() {
		g, err := Parse("mimic.cue", []byte(mimicGraph))
		if err != nil {
			panic(fmt.Sprintf("schema: embedded graph is invalid: %v", err))
		}
		defaultGraph = g
	})
	return defaultGraph
}

// LoadFile reads a graph from a CUE file on disk.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(path, data)
}

// Parse compiles CUE source, unifies it with the graph constraints and
// builds the Graph.
func Parse(filename string, src []byte) (*Graph, error) {
	ctx := cuecontext.New()

	constraints := ctx.CompileString(graphConstraints, cue.Filename("graph.cue"))
	if err := constraints.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return Load(constraints.Unify(v))
}

// Load builds a Graph from an evaluated CUE value with a root string and a
// tables struct.
func Load(v cue.Value) (*Graph, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	root, err := v.LookupPath(cue.ParsePath("root")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return nil, ir.Errorf(ir.ErrCodeInvalidSchema, "schema declares no tables")
	}
	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var tables []Table
	for iter.Next() {
		t := Table{Name: iter.Label()}
		if err := iter.Value().LookupPath(cue.ParsePath("parents")).Decode(&t.Parents); err != nil {
			return nil, formatCUEError(err)
		}
		tables = append(tables, t)
	}

	return NewGraph(root, tables)
}

// formatCUEError turns the first CUE error into an INVALID_SCHEMA error
// carrying its source position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ir.CompileError{Code: ir.ErrCodeInvalidSchema, Message: err.Error()}
	}
	first := errs[0]
	msg := first.Error()
	if positions := errors.Positions(first); len(positions) > 0 && positions[0].IsValid() {
		pos := positions[0]
		msg = fmt.Sprintf("%s:%d:%d: %s", pos.Filename(), pos.Line(), pos.Column(), msg)
	}
	return &ir.CompileError{Code: ir.ErrCodeInvalidSchema, Message: msg}
}
