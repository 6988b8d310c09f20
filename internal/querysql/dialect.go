package querysql

import (
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/cohort/internal/ir"
)

// Dialect covers the SQL differences between target databases: placeholder
// syntax, day arithmetic on timestamps and derived table aliases.
type Dialect struct {
	Name string

	// Placeholder rewrites the ? markers of parameterized output.
	Placeholder sq.PlaceholderFormat

	// aliasDerived names every derived table, which Postgres requires.
	aliasDerived bool

	dayDiff func(later, earlier string) string
}

var (
	// SQLite is the default dialect and the one the run command executes.
	SQLite = Dialect{
		Name:        "sqlite",
		Placeholder: sq.Question,
		dayDiff: func(later, earlier string) string {
			return fmt.Sprintf("CAST((julianday(%s) - julianday(%s)) AS REAL)", later, earlier)
		},
	}

	Postgres = Dialect{
		Name:         "postgres",
		Placeholder:  sq.Dollar,
		aliasDerived: true,
		dayDiff: func(later, earlier string) string {
			return fmt.Sprintf("EXTRACT(EPOCH FROM (%s - %s)) / 86400", later, earlier)
		},
	}
)

var dialects = map[string]Dialect{
	SQLite.Name:   SQLite,
	Postgres.Name: Postgres,
}

// DialectByName looks up a dialect. An empty name selects SQLite.
func DialectByName(name string) (Dialect, error) {
	if name == "" {
		return SQLite, nil
	}
	d, ok := dialects[name]
	if !ok {
		return Dialect{}, ir.Errorf(ir.ErrCodeInvalidRequest, "unknown dialect %q (want one of %v)", name, DialectNames())
	}
	return d, nil
}

// DialectNames lists the supported dialects, sorted.
func DialectNames() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// wrap turns a statement into a derived table usable as a set operand.
func (d Dialect) wrap(sql string, n int) string {
	if d.aliasDerived {
		return fmt.Sprintf("SELECT * FROM (\n%s\n) AS part%d", sql, n)
	}
	return fmt.Sprintf("SELECT * FROM (\n%s\n)", sql)
}

// readmission selects the hadm_id of every admission that has another
// admission of the same patient within interval days, before or after it.
func (d Dialect) readmission(table, interval string, mode Mode) (sq.Sqlizer, error) {
	side := func(later, earlier string) (string, []any, error) {
		diff := d.dayDiff(later, earlier)
		q := sq.Select("a.hadm_id").
			From("admissions a").
			Join("admissions a2 ON a.subject_id = a2.subject_id").
			Where("a.hadm_id != a2.hadm_id").
			Where(diff + " > 0")
		if mode == ModeParameterized {
			q = q.Where(diff+" < ?", interval)
		} else {
			q = q.Where(diff + " < " + interval)
		}
		return q.ToSql()
	}

	forward, fwdArgs, err := side("a2.admittime", "a.admittime")
	if err != nil {
		return nil, err
	}
	backward, bwdArgs, err := side("a.admittime", "a2.admittime")
	if err != nil {
		return nil, err
	}
	return sq.Expr(
		fmt.Sprintf("%s.hadm_id IN (%s UNION %s)", table, forward, backward),
		append(fwdArgs, bwdArgs...)...,
	), nil
}
