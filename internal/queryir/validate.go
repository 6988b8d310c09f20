package queryir

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roach88/cohort/internal/schema"
)

// ValidationResult lists questionable but compilable parts of a tree.
type ValidationResult struct {
	// Clean is true when no warnings were raised.
	Clean bool

	// Warnings describes each finding with the path of the node or filter.
	Warnings []string
}

// Validate walks the tree against the graph and reports warnings without
// failing. Hard errors (unknown tables, incomplete filters) are left to the
// compiler.
//
// Warnings:
//   - nodes with no filters and no subqueries
//   - nodes with a single subquery and no filters of their own
//   - range bounds where min > max
//   - readmission intervals that are not positive
//   - readmission filters on a table other than admissions
//   - filters on tables whose join depends on a context the request lacks
//
// Validate is a pure function with no side effects.
func Validate(req *Request, g *schema.Graph) ValidationResult {
	v := &treeValidator{
		graph:    g,
		ctx:      req.Context,
		warnings: []string{},
	}
	v.validateNode(req.Query, "query")

	return ValidationResult{
		Clean:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// treeValidator accumulates warnings during traversal.
type treeValidator struct {
	graph    *schema.Graph
	ctx      schema.Context
	warnings []string
}

func (v *treeValidator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *treeValidator) validateNode(n *Node, path string) {
	if n.IsEmpty() {
		v.addWarning("%s: node has no filters and no subqueries", path)
		return
	}
	if len(n.Filters) == 0 && len(n.Children) == 1 {
		v.addWarning("%s: node wraps a single subquery; its operator has no effect", path)
	}

	for i, f := range n.Filters {
		v.validateFilter(f, fmt.Sprintf("%s.filters[%d]", path, i))
	}
	for i, c := range n.Children {
		v.validateNode(c, fmt.Sprintf("%s.subqueries[%d]", path, i))
	}
}

func (v *treeValidator) validateFilter(f Filter, path string) {
	if f == nil {
		return
	}
	if v.ctx == schema.NoContext && v.graph.IsAmbiguous(f.TableName()) {
		v.addWarning("%s: table %s joins differently per context; set context", path, f.TableName())
	}

	switch f := f.(type) {
	case Range:
		lo, errLo := decimal.NewFromString(string(f.Min))
		hi, errHi := decimal.NewFromString(string(f.Max))
		if errLo == nil && errHi == nil && lo.GreaterThan(hi) {
			v.addWarning("%s: range on %s.%s is empty (min %s > max %s)", path, f.Table, f.Column, f.Min, f.Max)
		}
	case Readmission:
		if d, err := decimal.NewFromString(string(f.IntervalDays)); err == nil && !d.IsPositive() {
			v.addWarning("%s: readmission interval %s days matches nothing", path, f.IntervalDays)
		}
		if f.Table != "admissions" {
			v.addWarning("%s: readmission on %s relies on its hadm_id column; admissions is the usual table", path, f.Table)
		}
	}
}
