package queryir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cohort/internal/ir"
	"github.com/roach88/cohort/internal/schema"
)

// Filter type names on the wire.
const (
	FilterTypeValue       = "value"
	FilterTypeRange       = "range"
	FilterTypeReadmission = "readmission"
)

// Format selects the request decoder.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks YAML for .yaml/.yml files and JSON otherwise.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// RequestSpec is the wire shape of a request:
//
//	{ "context": "hospital" | "ed" | "",
//	  "output": [ { "table": "patients", "columns": ["subject_id"] } ],
//	  "query": { "operator": "AND" | "OR",
//	             "filters": [ { "filter_type": "value" | "range" | "readmission", ... } ],
//	             "subqueries": [ ... ] } }
//
// The older keys diagnosed_in (for context) and select_tables with name
// (for output) are still accepted.
type RequestSpec struct {
	Context      string       `json:"context,omitempty" yaml:"context,omitempty" validate:"omitempty,oneof=hospital ed"`
	DiagnosedIn  string       `json:"diagnosed_in,omitempty" yaml:"diagnosed_in,omitempty" validate:"omitempty,oneof=hospital ed"`
	Output       []OutputSpec `json:"output,omitempty" yaml:"output,omitempty" validate:"dive"`
	SelectTables []OutputSpec `json:"select_tables,omitempty" yaml:"select_tables,omitempty" validate:"dive"`
	Query        *NodeSpec    `json:"query" yaml:"query" validate:"required"`
}

// OutputSpec requests columns of one table.
type OutputSpec struct {
	Table   string   `json:"table,omitempty" yaml:"table,omitempty" validate:"omitempty,sqlident"`
	Name    string   `json:"name,omitempty" yaml:"name,omitempty" validate:"omitempty,sqlident"`
	Columns []string `json:"columns" yaml:"columns" validate:"min=1,dive,sqlident"`
}

// NodeSpec is one level of the predicate tree on the wire.
type NodeSpec struct {
	Operator   string       `json:"operator,omitempty" yaml:"operator,omitempty" validate:"omitempty,oneof=AND OR"`
	Filters    []FilterSpec `json:"filters,omitempty" yaml:"filters,omitempty" validate:"dive"`
	Subqueries []*NodeSpec  `json:"subqueries,omitempty" yaml:"subqueries,omitempty" validate:"dive"`
}

// FilterSpec is a leaf filter on the wire. Which fields apply depends on
// FilterType.
type FilterSpec struct {
	FilterType   string  `json:"filter_type" yaml:"filter_type"`
	Table        string  `json:"table" yaml:"table" validate:"required,sqlident"`
	Column       string  `json:"column,omitempty" yaml:"column,omitempty" validate:"omitempty,sqlident"`
	Value        *Scalar `json:"value,omitempty" yaml:"value,omitempty"`
	Min          *Scalar `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *Scalar `json:"max,omitempty" yaml:"max,omitempty"`
	IntervalDays *Scalar `json:"interval_days,omitempty" yaml:"interval_days,omitempty"`
}

// Scalar keeps the source text of a JSON or YAML scalar. A JSON number
// and a JSON string holding the same digits decode to the same Scalar.
type Scalar string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty scalar")
	}
	switch data[0] {
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	case '{', '[':
		return fmt.Errorf("expected a string or number, got %s", data)
	default:
		*s = Scalar(data)
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a string or number", node.Line)
	}
	*s = Scalar(node.Value)
	return nil
}

var sqlIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// requestValidate is the validator instance for wire requests.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return sqlIdent.MatchString(fl.Field().String())
	})
}

// ReadRequestFile decodes the request stored at path. The format follows
// the file extension.
func ReadRequestFile(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return DecodeRequest(data, FormatForPath(path))
}

// DecodeRequest parses, validates and builds a request. Unknown keys are
// rejected. Every failure is a *ir.CompileError.
func DecodeRequest(data []byte, format Format) (*Request, error) {
	var spec RequestSpec
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
			return nil, ir.Errorf(ir.ErrCodeInvalidRequest, "parse YAML: %v", err)
		}
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, ir.Errorf(ir.ErrCodeInvalidRequest, "parse JSON: %v", err)
		}
	default:
		return nil, ir.Errorf(ir.ErrCodeInvalidRequest, "unknown request format %q", format)
	}
	return spec.Build()
}

// Build validates the decoded wire form and converts it into a Request.
func (s *RequestSpec) Build() (*Request, error) {
	if err := requestValidate.Struct(s); err != nil {
		return nil, validationError(err)
	}

	ctxName := s.Context
	if s.DiagnosedIn != "" {
		if ctxName != "" && ctxName != s.DiagnosedIn {
			return nil, ir.Errorf(ir.ErrCodeInvalidRequest,
				"context %q conflicts with diagnosed_in %q", s.Context, s.DiagnosedIn)
		}
		ctxName = s.DiagnosedIn
	}
	ctx, err := schema.ParseContext(ctxName)
	if err != nil {
		return nil, err
	}

	output, err := buildOutput(append(append([]OutputSpec{}, s.Output...), s.SelectTables...))
	if err != nil {
		return nil, err
	}

	query, err := s.Query.build("query")
	if err != nil {
		return nil, err
	}

	return &Request{Context: ctx, Output: output, Query: query}, nil
}

func buildOutput(specs []OutputSpec) (Output, error) {
	var out Output
	for i, spec := range specs {
		table := spec.Table
		if table == "" {
			table = spec.Name
		}
		if table == "" {
			return nil, &ir.CompileError{
				Code:    ir.ErrCodeInvalidRequest,
				Message: "output entry has no table",
				Path:    fmt.Sprintf("output[%d]", i),
			}
		}
		for _, col := range spec.Columns {
			out = append(out, OutputColumn{Table: table, Column: col})
		}
	}
	return out, nil
}

func (s *NodeSpec) build(path string) (*Node, error) {
	if s == nil {
		return nil, &ir.CompileError{
			Code:    ir.ErrCodeEmptyPredicateNode,
			Message: "node is missing",
			Path:    path,
		}
	}
	n := &Node{Operator: And}
	if s.Operator == string(Or) {
		n.Operator = Or
	}
	for i, fs := range s.Filters {
		f, err := fs.build(fmt.Sprintf("%s.filters[%d]", path, i))
		if err != nil {
			return nil, err
		}
		n.Filters = append(n.Filters, f)
	}
	for i, cs := range s.Subqueries {
		child, err := cs.build(fmt.Sprintf("%s.subqueries[%d]", path, i))
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

func (s FilterSpec) build(path string) (Filter, error) {
	incomplete := func(field string) error {
		return &ir.CompileError{
			Code:    ir.ErrCodeIncompleteFilter,
			Message: fmt.Sprintf("%s filter needs %s", s.FilterType, field),
			Table:   s.Table,
			Path:    path,
		}
	}

	switch s.FilterType {
	case FilterTypeValue:
		if s.Column == "" {
			return nil, incomplete("column")
		}
		if s.Value == nil {
			return nil, incomplete("value")
		}
		return Equality{Table: s.Table, Column: s.Column, Value: string(*s.Value)}, nil

	case FilterTypeRange:
		if s.Column == "" {
			return nil, incomplete("column")
		}
		if s.Min == nil || *s.Min == "" {
			return nil, incomplete("min")
		}
		if s.Max == nil || *s.Max == "" {
			return nil, incomplete("max")
		}
		return Range{Table: s.Table, Column: s.Column, Min: Literal(*s.Min), Max: Literal(*s.Max)}, nil

	case FilterTypeReadmission:
		if s.IntervalDays == nil || *s.IntervalDays == "" {
			return nil, incomplete("interval_days")
		}
		return Readmission{Table: s.Table, IntervalDays: Literal(*s.IntervalDays)}, nil
	}

	return nil, &ir.CompileError{
		Code:    ir.ErrCodeInvalidFilterKind,
		Message: fmt.Sprintf("unknown filter_type %q", s.FilterType),
		Table:   s.Table,
		Path:    path,
	}
}

// validationError reports the first failed validator tag as INVALID_REQUEST.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ir.CompileError{
			Code:    ir.ErrCodeInvalidRequest,
			Message: fmt.Sprintf("%s fails %q (value %v)", fe.Field(), fe.Tag(), fe.Value()),
			Path:    fieldPath(fe.Namespace()),
		}
	}
	return ir.Errorf(ir.ErrCodeInvalidRequest, "%v", err)
}

// fieldPath turns a validator namespace such as
// "RequestSpec.Query.Subqueries[0].Filters[1].Table" into a request path.
func fieldPath(ns string) string {
	ns = strings.TrimPrefix(ns, "RequestSpec.")
	ns = strings.ReplaceAll(ns, "Subqueries", "subqueries")
	ns = strings.ReplaceAll(ns, "Filters", "filters")
	ns = strings.ReplaceAll(ns, "Query", "query")
	ns = strings.ReplaceAll(ns, "SelectTables", "select_tables")
	ns = strings.ReplaceAll(ns, "Output", "output")
	ns = strings.ReplaceAll(ns, "Columns", "columns")
	return strings.ToLower(ns)
}
