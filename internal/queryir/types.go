package queryir

import "github.com/roach88/cohort/internal/schema"

// Operator combines the filters of a node and the results of its children.
type Operator string

const (
	// And keeps rows matching every filter; children combine with INTERSECT.
	And Operator = "AND"

	// Or keeps rows matching any filter; children combine with UNION.
	Or Operator = "OR"
)

// Filter is a leaf condition over one table.
//
// This is a sealed interface - only types in this package implement it.
type Filter interface {
	filterNode() // Marker method - seals interface to this package

	// TableName returns the table the filter reads.
	TableName() string
}

// Literal is the source text of a numeric literal. It is validated as a
// decimal number at compile time and rendered verbatim.
type Literal string

// IsZero reports whether the literal is missing.
func (l Literal) IsZero() bool { return l == "" }

// Equality matches a column against a value.
//
//	table.column = 'value'
type Equality struct {
	Table  string
	Column string
	Value  string
}

func (Equality) filterNode() {}

// TableName implements Filter.
func (f Equality) TableName() string { return f.Table }

// Range matches a column between two inclusive bounds.
//
//	table.column BETWEEN min AND max
type Range struct {
	Table  string
	Column string
	Min    Literal
	Max    Literal
}

func (Range) filterNode() {}

// TableName implements Filter.
func (f Range) TableName() string { return f.Table }

// Readmission matches admissions followed or preceded by another admission
// of the same patient within IntervalDays. Table must carry hadm_id.
type Readmission struct {
	Table        string
	IntervalDays Literal
}

func (Readmission) filterNode() {}

// TableName implements Filter.
func (f Readmission) TableName() string { return f.Table }

// Node is one level of the predicate tree. A node with children compiles to
// a set operation over its own filter block (if any) and each child.
type Node struct {
	Operator Operator
	Filters  []Filter
	Children []*Node
}

// IsEmpty reports whether the node has neither filters nor children.
func (n *Node) IsEmpty() bool {
	return n == nil || (len(n.Filters) == 0 && len(n.Children) == 0)
}

// Tables returns the tables read by the filters of the node and its
// descendants, in first-seen order.
func (n *Node) Tables() []string {
	var out []string
	seen := map[string]bool{}
	var walk func(*Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		for _, f := range n.Filters {
			if f == nil || seen[f.TableName()] {
				continue
			}
			seen[f.TableName()] = true
			out = append(out, f.TableName())
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

// OutputColumn is one column of the final SELECT.
type OutputColumn struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Output is the ordered projection shared by every block of a statement.
type Output []OutputColumn

// Tables returns the tables of the output in projection order, without
// duplicates.
func (o Output) Tables() []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range o {
		if !seen[c.Table] {
			seen[c.Table] = true
			out = append(out, c.Table)
		}
	}
	return out
}

// Request is a decoded cohort request.
type Request struct {
	Context schema.Context
	Output  Output
	Query   *Node
}
