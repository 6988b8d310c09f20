package schema

import "fmt"

// JoinPath is the FROM list and join conditions that connect a set of
// tables to the root.
type JoinPath struct {
	From       []string
	Conditions []string
}

// Resolve walks each needed table to the root, parent first, and returns
// the tables in the order they were reached. The root is always first.
// Each table appears once no matter how many needed tables share it.
//
// Resolve fails with UNKNOWN_TABLE for a table outside the graph and with
// AMBIGUOUS_JOIN when a table has no parent link active under ctx.
func (g *Graph) Resolve(needed []string, ctx Context) (JoinPath, error) {
	r := &resolver{
		graph:   g,
		ctx:     ctx,
		visited: map[string]bool{g.root: true},
		path:    JoinPath{From: []string{g.root}},
	}
	for _, name := range needed {
		if err := r.walk(name); err != nil {
			return JoinPath{}, err
		}
	}
	return r.path, nil
}

type resolver struct {
	graph   *Graph
	ctx     Context
	visited map[string]bool
	path    JoinPath
}

func (r *resolver) walk(name string) error {
	if r.visited[name] {
		return nil
	}
	link, _, err := r.graph.ActiveParent(name, r.ctx)
	if err != nil {
		return err
	}
	r.visited[name] = true
	if err := r.walk(link.Parent); err != nil {
		return err
	}
	r.path.From = append(r.path.From, name)
	r.path.Conditions = append(r.path.Conditions,
		fmt.Sprintf("%s.%s = %s.%s", link.Parent, link.ParentColumn, name, link.LocalColumn))
	return nil
}
