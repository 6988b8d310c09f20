package querysql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/roach88/cohort/internal/ir"
	"github.com/roach88/cohort/internal/queryir"
)

// compileFilter renders one leaf filter. This is the only place filter
// variants are told apart.
func (b *builder) compileFilter(f queryir.Filter, path string) (sq.Sqlizer, error) {
	switch f := f.(type) {
	case queryir.Equality:
		if f.Column == "" {
			return nil, incomplete(f.Table, path, "value filter needs a column")
		}
		col := f.Table + "." + f.Column
		if b.opts.Mode == ModeParameterized {
			return sq.Expr(col+" = ?", f.Value), nil
		}
		return sq.Expr(fmt.Sprintf("%s = %s", col, quote(f.Value))), nil

	case queryir.Range:
		if f.Column == "" {
			return nil, incomplete(f.Table, path, "range filter needs a column")
		}
		if f.Min.IsZero() || f.Max.IsZero() {
			return nil, incomplete(f.Table, path, "range filter needs both min and max")
		}
		if err := checkLiteral(f.Min, f.Table, path); err != nil {
			return nil, err
		}
		if err := checkLiteral(f.Max, f.Table, path); err != nil {
			return nil, err
		}
		col := f.Table + "." + f.Column
		if b.opts.Mode == ModeParameterized {
			return sq.Expr(col+" BETWEEN ? AND ?", string(f.Min), string(f.Max)), nil
		}
		return sq.Expr(fmt.Sprintf("%s BETWEEN %s AND %s", col, f.Min, f.Max)), nil

	case queryir.Readmission:
		if f.IntervalDays.IsZero() {
			return nil, incomplete(f.Table, path, "readmission filter needs interval_days")
		}
		if err := checkLiteral(f.IntervalDays, f.Table, path); err != nil {
			return nil, err
		}
		return b.opts.Dialect.readmission(f.Table, string(f.IntervalDays), b.opts.Mode)
	}

	return nil, &ir.CompileError{
		Code:    ir.ErrCodeInvalidFilterKind,
		Message: fmt.Sprintf("unsupported filter type: %T", f),
		Path:    path,
	}
}

// quote renders a string literal with embedded quotes doubled.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// checkLiteral accepts any decimal number, including exponent forms that
// overflow float64. The text itself is never reformatted.
func checkLiteral(lit queryir.Literal, table, path string) error {
	if _, err := decimal.NewFromString(string(lit)); err != nil {
		return &ir.CompileError{
			Code:    ir.ErrCodeInvalidLiteral,
			Message: fmt.Sprintf("%q is not a number", string(lit)),
			Table:   table,
			Path:    path,
		}
	}
	return nil
}

func incomplete(table, path, msg string) error {
	return &ir.CompileError{Code: ir.ErrCodeIncompleteFilter, Message: msg, Table: table, Path: path}
}
