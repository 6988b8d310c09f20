package querysql

import (
	"fmt"

	"github.com/roach88/cohort/internal/ir"
	"github.com/roach88/cohort/internal/queryir"
	"github.com/roach88/cohort/internal/schema"
)

// Projection returns the SELECT list for output as table.column strings in
// request order. Every block of a statement uses this same list, so the
// operands of UNION and INTERSECT always have matching arity.
func Projection(output queryir.Output, g *schema.Graph) ([]string, error) {
	if len(output) == 0 {
		return nil, ir.Errorf(ir.ErrCodeEmptyProjection, "no output columns requested")
	}
	cols := make([]string, 0, len(output))
	for i, c := range output {
		path := fmt.Sprintf("output[%d]", i)
		if !g.Has(c.Table) {
			return nil, ir.NewUnknownTableError(c.Table).WithPath(path)
		}
		if c.Column == "" {
			return nil, &ir.CompileError{
				Code:    ir.ErrCodeInvalidRequest,
				Message: "output column is empty",
				Table:   c.Table,
				Path:    path,
			}
		}
		cols = append(cols, c.Table+"."+c.Column)
	}
	return cols, nil
}
