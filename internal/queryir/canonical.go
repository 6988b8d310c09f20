package queryir

import "github.com/roach88/cohort/internal/ir"

// Canonical returns the request as plain maps and slices ready for
// ir.MarshalCanonical. Legacy aliases are already folded in, so two wire
// spellings of the same request produce the same map.
func (r *Request) Canonical() map[string]any {
	output := make([]any, 0, len(r.Output))
	for _, c := range r.Output {
		output = append(output, map[string]any{"table": c.Table, "column": c.Column})
	}
	return map[string]any{
		"context": string(r.Context),
		"output":  output,
		"query":   canonicalNode(r.Query),
	}
}

// Fingerprint is the content-addressed identity of the request.
func (r *Request) Fingerprint() (string, error) {
	return ir.Fingerprint(r.Canonical())
}

func canonicalNode(n *Node) map[string]any {
	if n == nil {
		return map[string]any{}
	}
	filters := make([]any, 0, len(n.Filters))
	for _, f := range n.Filters {
		filters = append(filters, canonicalFilter(f))
	}
	children := make([]any, 0, len(n.Children))
	for _, c := range n.Children {
		children = append(children, canonicalNode(c))
	}
	op := n.Operator
	if op == "" {
		op = And
	}
	return map[string]any{
		"operator":   string(op),
		"filters":    filters,
		"subqueries": children,
	}
}

func canonicalFilter(f Filter) any {
	switch f := f.(type) {
	case Equality:
		return map[string]any{"filter_type": FilterTypeValue, "table": f.Table, "column": f.Column, "value": f.Value}
	case Range:
		return map[string]any{"filter_type": FilterTypeRange, "table": f.Table, "column": f.Column, "min": string(f.Min), "max": string(f.Max)}
	case Readmission:
		return map[string]any{"filter_type": FilterTypeReadmission, "table": f.Table, "interval_days": string(f.IntervalDays)}
	}
	// nil filters have no canonical form; MarshalCanonical rejects them
	return nil
}
