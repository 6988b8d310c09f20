package ir

import (
	"errors"
	"fmt"
)

// CompileError is the typed failure returned by the schema graph, the join
// resolver and the query compiler. No partial SQL accompanies it.
type CompileError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Table names the offending table, when there is one.
	Table string

	// Path locates the offending node or filter inside the request,
	// e.g. "query.subqueries[1].filters[0]".
	Path string
}

// ErrorCode categorizes compile errors.
type ErrorCode string

const (
	// ErrCodeUnknownTable indicates a table that is not in the schema graph.
	ErrCodeUnknownTable ErrorCode = "UNKNOWN_TABLE"

	// ErrCodeInvalidFilterKind indicates a filter variant the compiler does not know.
	ErrCodeInvalidFilterKind ErrorCode = "INVALID_FILTER_KIND"

	// ErrCodeIncompleteFilter indicates a filter missing a column, bound or interval.
	ErrCodeIncompleteFilter ErrorCode = "INCOMPLETE_FILTER"

	// ErrCodeEmptyPredicateNode indicates a node with no filters and no children.
	ErrCodeEmptyPredicateNode ErrorCode = "EMPTY_PREDICATE_NODE"

	// ErrCodeEmptyProjection indicates an empty output column list.
	ErrCodeEmptyProjection ErrorCode = "EMPTY_PROJECTION"

	// ErrCodeAmbiguousJoin indicates a multi-parent table with no parent
	// link active for the compilation context.
	ErrCodeAmbiguousJoin ErrorCode = "AMBIGUOUS_JOIN"

	// ErrCodeInvalidLiteral indicates a numeric literal that does not parse.
	ErrCodeInvalidLiteral ErrorCode = "INVALID_LITERAL"

	// ErrCodeInvalidRequest indicates a malformed wire request.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// ErrCodeInvalidSchema indicates a schema graph that breaks its invariants.
	ErrCodeInvalidSchema ErrorCode = "INVALID_SCHEMA"
)

// Error implements the error interface.
func (e *CompileError) Error() string {
	switch {
	case e.Path != "" && e.Table != "":
		return fmt.Sprintf("%s: %s (table=%s, at %s)", e.Code, e.Message, e.Table, e.Path)
	case e.Table != "":
		return fmt.Sprintf("%s: %s (table=%s)", e.Code, e.Message, e.Table)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is, or wraps, a CompileError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// CodeOf returns the code of the CompileError inside err, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// Errorf builds a CompileError with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewUnknownTableError creates a CompileError for a table outside the graph.
func NewUnknownTableError(table string) *CompileError {
	return &CompileError{
		Code:    ErrCodeUnknownTable,
		Message: fmt.Sprintf("table %q is not in the schema graph", table),
		Table:   table,
	}
}

// NewAmbiguousJoinError creates a CompileError for a table whose parent
// cannot be chosen under the given context.
func NewAmbiguousJoinError(table, context string) *CompileError {
	msg := fmt.Sprintf("table %q has several parents and none is active without a context", table)
	if context != "" {
		msg = fmt.Sprintf("table %q has no parent link active in context %q", table, context)
	}
	return &CompileError{
		Code:    ErrCodeAmbiguousJoin,
		Message: msg,
		Table:   table,
	}
}

// WithPath returns a copy of e located at path. An existing path is kept.
func (e *CompileError) WithPath(path string) *CompileError {
	if e.Path != "" {
		return e
	}
	cp := *e
	cp.Path = path
	return &cp
}
