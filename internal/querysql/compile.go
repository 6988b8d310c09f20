package querysql

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/cohort/internal/ir"
	"github.com/roach88/cohort/internal/queryir"
	"github.com/roach88/cohort/internal/schema"
)

// Mode selects how filter values reach the statement.
type Mode int

const (
	// ModeLiteral inlines values: strings quoted, numbers verbatim.
	ModeLiteral Mode = iota

	// ModeParameterized emits placeholders and returns the values as Args.
	ModeParameterized
)

// Options is the compilation context. It is passed down the tree
// unchanged, except that Context is dropped for subtrees that do not need it.
type Options struct {
	Context schema.Context
	Output  queryir.Output
	Mode    Mode
	Dialect Dialect
}

// Result is a compiled statement. Args is empty in ModeLiteral.
type Result struct {
	SQL  string
	Args []any
}

// Compiler turns predicate trees into SQL over a schema graph.
//
// A Compiler only reads its graph, so one instance can serve concurrent
// Compile calls.
type Compiler struct {
	graph *schema.Graph
}

// NewCompiler creates a Compiler for the graph.
func NewCompiler(g *schema.Graph) *Compiler {
	return &Compiler{graph: g}
}

// Graph returns the schema graph the compiler joins over.
func (c *Compiler) Graph() *schema.Graph { return c.graph }

// Compile converts a predicate tree into one SQL statement.
//
// A node with only filters becomes
//
//	SELECT <projection> FROM <tables> WHERE <joins> AND (<filters>)
//
// with filters joined by the node operator. A node with children wraps its
// own filter block (if any) and each child as SELECT * FROM (...) and joins
// them with UNION (OR) or INTERSECT (AND).
//
// On failure Compile returns a *ir.CompileError and no SQL.
func (c *Compiler) Compile(node *queryir.Node, opts Options) (Result, error) {
	if opts.Dialect.Name == "" {
		opts.Dialect = SQLite
	}

	columns, err := Projection(opts.Output, c.graph)
	if err != nil {
		return Result{}, err
	}

	b := &builder{
		graph:   c.graph,
		opts:    opts,
		columns: columns,
	}
	for _, t := range opts.Output.Tables() {
		if c.graph.IsAmbiguous(t) {
			b.outputNeedsContext = true
		}
	}

	sql, args, err := b.compileNode(node, "query", b.contextFor(node, opts.Context))
	if err != nil {
		return Result{}, err
	}

	if opts.Mode == ModeParameterized {
		sql, err = opts.Dialect.Placeholder.ReplacePlaceholders(sql)
		if err != nil {
			return Result{}, fmt.Errorf("replace placeholders: %w", err)
		}
	}
	if len(args) == 0 {
		args = nil
	}
	return Result{SQL: sql, Args: args}, nil
}

// CompileRequest compiles a decoded request with its own context and output.
func (c *Compiler) CompileRequest(req *queryir.Request, mode Mode, dialect Dialect) (Result, error) {
	return c.Compile(req.Query, Options{
		Context: req.Context,
		Output:  req.Output,
		Mode:    mode,
		Dialect: dialect,
	})
}

// builder holds the per-call state of one Compile.
type builder struct {
	graph              *schema.Graph
	opts               Options
	columns            []string
	outputNeedsContext bool
}

// contextFor keeps ctx only when the output or the subtree reads a table
// whose join depends on it.
func (b *builder) contextFor(n *queryir.Node, ctx schema.Context) schema.Context {
	if b.outputNeedsContext {
		return ctx
	}
	for _, t := range n.Tables() {
		if b.graph.IsAmbiguous(t) {
			return ctx
		}
	}
	return schema.NoContext
}

func (b *builder) compileNode(n *queryir.Node, path string, ctx schema.Context) (string, []any, error) {
	if n.IsEmpty() {
		return "", nil, &ir.CompileError{
			Code:    ir.ErrCodeEmptyPredicateNode,
			Message: "node has no filters and no subqueries",
			Path:    path,
		}
	}
	setOp, err := setOperator(n.Operator, path)
	if err != nil {
		return "", nil, err
	}

	if len(n.Children) == 0 {
		return b.compileBlock(n, path, ctx)
	}

	var parts []string
	var args []any
	if len(n.Filters) > 0 {
		sql, blockArgs, err := b.compileBlock(n, path, ctx)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, b.opts.Dialect.wrap(sql, len(parts)))
		args = append(args, blockArgs...)
	}
	for i, child := range n.Children {
		childPath := fmt.Sprintf("%s.subqueries[%d]", path, i)
		sql, childArgs, err := b.compileNode(child, childPath, b.contextFor(child, ctx))
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, b.opts.Dialect.wrap(sql, len(parts)))
		args = append(args, childArgs...)
	}
	return strings.Join(parts, "\n"+setOp+"\n"), args, nil
}

// compileBlock renders the node's own filters as a single SELECT joined
// back to the root.
func (b *builder) compileBlock(n *queryir.Node, path string, ctx schema.Context) (string, []any, error) {
	needed := b.opts.Output.Tables()
	seen := make(map[string]bool, len(needed))
	for _, t := range needed {
		seen[t] = true
	}

	conds := make([]sq.Sqlizer, 0, len(n.Filters))
	for i, f := range n.Filters {
		filterPath := fmt.Sprintf("%s.filters[%d]", path, i)
		expr, err := b.compileFilter(f, filterPath)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, expr)

		table := f.TableName()
		if !b.graph.Has(table) {
			return "", nil, ir.NewUnknownTableError(table).WithPath(filterPath)
		}
		if !seen[table] {
			seen[table] = true
			needed = append(needed, table)
		}
	}

	joins, err := b.graph.Resolve(needed, ctx)
	if err != nil {
		return "", nil, locate(err, path)
	}

	var group sq.Sqlizer = sq.And(conds)
	if n.Operator == queryir.Or {
		group = sq.Or(conds)
	}

	q := sq.Select(b.columns...).From(strings.Join(joins.From, ", "))
	for _, cond := range joins.Conditions {
		q = q.Where(cond)
	}
	sql, args, err := q.Where(group).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build block at %s: %w", path, err)
	}
	return sql, args, nil
}

// locate places the CompileError inside err at path. Other errors are
// returned unchanged.
func locate(err error, path string) error {
	var ce *ir.CompileError
	if errors.As(err, &ce) {
		return ce.WithPath(path)
	}
	return err
}

func setOperator(op queryir.Operator, path string) (string, error) {
	switch op {
	case queryir.And, "":
		return "INTERSECT", nil
	case queryir.Or:
		return "UNION", nil
	}
	return "", &ir.CompileError{
		Code:    ir.ErrCodeInvalidRequest,
		Message: fmt.Sprintf("unknown operator %q", op),
		Path:    path,
	}
}
