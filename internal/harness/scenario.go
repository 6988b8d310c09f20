package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is one compile test case.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Dialect is the SQL dialect to compile for. Empty selects sqlite.
	Dialect string `yaml:"dialect,omitempty"`

	// Parameterized compiles with placeholders instead of inline values.
	Parameterized bool `yaml:"parameterized,omitempty"`

	// Fixtures are SQL statements run against a fresh in-memory database
	// before row_count assertions execute the compiled statement.
	Fixtures []string `yaml:"fixtures,omitempty"`

	// Request is the wire request, decoded by the same path as request files.
	Request yaml.Node `yaml:"request"`

	Assertions []Assertion `yaml:"assertions"`

	// dir is the directory the scenario was loaded from.
	dir string
}

// Assertion checks one property of the compile outcome.
type Assertion struct {
	Type string `yaml:"type"`

	// Value is the substring for sql_contains and sql_not_contains.
	Value string `yaml:"value,omitempty"`

	// Keyword is UNION or INTERSECT for set_op_count.
	Keyword string `yaml:"keyword,omitempty"`

	// Count is the expected number for set_op_count and row_count.
	Count int `yaml:"count,omitempty"`

	// Code is the expected error code for error_code.
	Code string `yaml:"code,omitempty"`

	// File overrides the golden file path, relative to the scenario.
	File string `yaml:"file,omitempty"`
}

// Assertion type constants.
const (
	AssertSQLContains    = "sql_contains"
	AssertSQLNotContains = "sql_not_contains"
	AssertSetOpCount     = "set_op_count"
	AssertErrorCode      = "error_code"
	AssertRowCount       = "row_count"
	AssertGolden         = "golden"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.dir = filepath.Dir(path)
	return sc, nil
}

// ParseScenario decodes scenario YAML. Golden files resolve against the
// working directory until the scenario is given a location by LoadScenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every .yaml and .yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// GoldenPath returns the file a golden assertion compares against.
func (s *Scenario) GoldenPath(a Assertion) string {
	name := a.File
	if name == "" {
		name = filepath.Join("golden", s.Name+".golden")
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Request.Kind == 0 {
		return fmt.Errorf("request is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("at least one assertion is required")
	}

	hasRowCount := false
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
		if a.Type == AssertRowCount {
			hasRowCount = true
		}
	}
	if hasRowCount && len(s.Fixtures) == 0 {
		return fmt.Errorf("row_count assertions need fixtures")
	}
	if hasRowCount && s.Dialect != "" && s.Dialect != "sqlite" {
		return fmt.Errorf("row_count assertions only run on the sqlite dialect")
	}
	return nil
}

func validateAssertion(a Assertion, index int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSQLContains, AssertSQLNotContains:
		if a.Value == "" {
			return fmt.Errorf("assertions[%d]: value is required for %s", index, a.Type)
		}
	case AssertSetOpCount:
		if a.Keyword != "UNION" && a.Keyword != "INTERSECT" {
			return fmt.Errorf("assertions[%d]: keyword must be UNION or INTERSECT, got %q", index, a.Keyword)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for set_op_count", index)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code", index)
		}
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertGolden:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
