package schema

import (
	"fmt"
	"slices"

	"github.com/roach88/cohort/internal/ir"
)

// Context selects among the parent links of a table that can be reached
// through more than one module.
type Context string

const (
	NoContext Context = ""
	Hospital  Context = "hospital"
	ED        Context = "ed"
)

// ParseContext maps user input to a Context. Empty input means no context.
func ParseContext(s string) (Context, error) {
	switch c := Context(s); c {
	case NoContext, Hospital, ED:
		return c, nil
	}
	return NoContext, ir.Errorf(ir.ErrCodeInvalidRequest, "unknown context %q (want hospital or ed)", s)
}

// ParentLink joins a table to one of its parents:
// parent.parent_column = table.local_column.
type ParentLink struct {
	Parent       string  `json:"parent"`
	ParentColumn string  `json:"parent_column"`
	LocalColumn  string  `json:"local_column"`
	Context      Context `json:"context,omitempty"`
}

// ActiveIn reports whether the link applies under ctx. A link without a
// context applies everywhere.
func (l ParentLink) ActiveIn(ctx Context) bool {
	return l.Context == NoContext || l.Context == ctx
}

// Table is a node of the graph.
type Table struct {
	Name    string       `json:"name"`
	Parents []ParentLink `json:"parents"`
}

// Graph is the immutable join graph. Build one with NewGraph or the
// loaders in load.go.
type Graph struct {
	root     string
	tables   map[string]Table
	names    []string
	contexts []Context
}

// NewGraph validates tables and builds a Graph rooted at root.
//
// Invariants:
//   - root exists and is the only table without parent links
//   - every parent link names a table of the graph
//   - at most one link of a table is active in any context
//   - following active links always reaches root
func NewGraph(root string, tables []Table) (*Graph, error) {
	g := &Graph{
		root:   root,
		tables: make(map[string]Table, len(tables)),
	}
	seenContexts := make(map[Context]bool)

	for _, t := range tables {
		if t.Name == "" {
			return nil, ir.Errorf(ir.ErrCodeInvalidSchema, "table with empty name")
		}
		if _, dup := g.tables[t.Name]; dup {
			return nil, invalidSchema(t.Name, "table declared twice")
		}
		g.tables[t.Name] = Table{Name: t.Name, Parents: slices.Clone(t.Parents)}
		g.names = append(g.names, t.Name)
		for _, l := range t.Parents {
			if l.Context != NoContext && !seenContexts[l.Context] {
				seenContexts[l.Context] = true
				g.contexts = append(g.contexts, l.Context)
			}
		}
	}
	slices.Sort(g.names)
	slices.Sort(g.contexts)

	rt, ok := g.tables[root]
	if !ok {
		return nil, invalidSchema(root, "root table is not declared")
	}
	if len(rt.Parents) != 0 {
		return nil, invalidSchema(root, "root table must not have parent links")
	}

	for _, name := range g.names {
		if err := g.checkLinks(g.tables[name]); err != nil {
			return nil, err
		}
	}
	for _, ctx := range append([]Context{NoContext}, g.contexts...) {
		for _, name := range g.names {
			if err := g.checkChain(name, ctx); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func (g *Graph) checkLinks(t Table) error {
	if t.Name != g.root && len(t.Parents) == 0 {
		return invalidSchema(t.Name, fmt.Sprintf("table has no parent links but %q is the root", g.root))
	}
	unconditional := 0
	perContext := make(map[Context]int)
	for _, l := range t.Parents {
		if _, ok := g.tables[l.Parent]; !ok {
			return invalidSchema(t.Name, fmt.Sprintf("parent %q is not declared", l.Parent))
		}
		if l.Parent == t.Name {
			return invalidSchema(t.Name, "table is its own parent")
		}
		if l.ParentColumn == "" || l.LocalColumn == "" {
			return invalidSchema(t.Name, fmt.Sprintf("link to %q is missing a join column", l.Parent))
		}
		if l.Context == NoContext {
			unconditional++
		} else {
			perContext[l.Context]++
		}
	}
	if unconditional > 1 || (unconditional == 1 && len(t.Parents) > 1) {
		return invalidSchema(t.Name, "a link without context must be the only link")
	}
	for ctx, n := range perContext {
		if n > 1 {
			return invalidSchema(t.Name, fmt.Sprintf("%d links active in context %q", n, ctx))
		}
	}
	return nil
}

// checkChain follows active links from name and fails on a cycle.
// Tables with no active link under ctx end the walk.
func (g *Graph) checkChain(name string, ctx Context) error {
	seen := map[string]bool{}
	for cur := name; cur != g.root; {
		if seen[cur] {
			return invalidSchema(name, fmt.Sprintf("cycle through %q in context %q", cur, ctx))
		}
		seen[cur] = true
		link, ok := g.activeLink(g.tables[cur], ctx)
		if !ok {
			return nil
		}
		cur = link.Parent
	}
	return nil
}

func invalidSchema(table, msg string) *ir.CompileError {
	return &ir.CompileError{Code: ir.ErrCodeInvalidSchema, Message: msg, Table: table}
}

// Root returns the name of the root table.
func (g *Graph) Root() string { return g.root }

// Has reports whether the graph declares the table.
func (g *Graph) Has(name string) bool {
	_, ok := g.tables[name]
	return ok
}

// Table returns the named table.
func (g *Graph) Table(name string) (Table, bool) {
	t, ok := g.tables[name]
	return t, ok
}

// Tables returns every table sorted by name.
func (g *Graph) Tables() []Table {
	out := make([]Table, 0, len(g.names))
	for _, name := range g.names {
		out = append(out, g.tables[name])
	}
	return out
}

// Contexts returns the contexts used by any link, sorted.
func (g *Graph) Contexts() []Context {
	return slices.Clone(g.contexts)
}

// IsAmbiguous reports whether the join chain of the table depends on the
// compilation context, either through its own links or an ancestor's.
func (g *Graph) IsAmbiguous(name string) bool {
	for cur := name; ; {
		t, ok := g.tables[cur]
		if !ok || len(t.Parents) == 0 {
			return false
		}
		for _, l := range t.Parents {
			if l.Context != NoContext {
				return true
			}
		}
		cur = t.Parents[0].Parent
	}
}

// ActiveParent returns the link of the table that applies under ctx.
// The root has no parent and reports ok=false with a nil error.
func (g *Graph) ActiveParent(name string, ctx Context) (ParentLink, bool, error) {
	t, ok := g.tables[name]
	if !ok {
		return ParentLink{}, false, ir.NewUnknownTableError(name)
	}
	if name == g.root {
		return ParentLink{}, false, nil
	}
	link, ok := g.activeLink(t, ctx)
	if !ok {
		return ParentLink{}, false, ir.NewAmbiguousJoinError(name, string(ctx))
	}
	return link, true, nil
}

func (g *Graph) activeLink(t Table, ctx Context) (ParentLink, bool) {
	for _, l := range t.Parents {
		if l.ActiveIn(ctx) {
			return l, true
		}
	}
	return ParentLink{}, false
}
