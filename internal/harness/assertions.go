package harness

import (
	"fmt"
	"os"
	"strings"
)

// AssertionError describes one failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion of sc against result and
// returns a message per failure.
func EvaluateAssertions(sc *Scenario, result *Result) []string {
	var msgs []string
	for i, a := range sc.Assertions {
		if err := evaluate(sc, a, result); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func evaluate(sc *Scenario, a Assertion, result *Result) error {
	if a.Type == AssertErrorCode {
		return assertErrorCode(a, result)
	}
	if result.ErrorCode != "" {
		// The compile failure is already reported.
		return nil
	}

	switch a.Type {
	case AssertSQLContains:
		if !strings.Contains(result.SQL, a.Value) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("SQL containing %q", a.Value), Actual: "no match"}
		}
	case AssertSQLNotContains:
		if strings.Contains(result.SQL, a.Value) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("SQL without %q", a.Value), Actual: "found"}
		}
	case AssertSetOpCount:
		if got := CountSetOps(result.SQL, a.Keyword); got != a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d %s", a.Count, a.Keyword), Actual: fmt.Sprint(got)}
		}
	case AssertRowCount:
		if result.RowCount == nil {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d rows", a.Count), Actual: "statement not executed"}
		}
		if *result.RowCount != int64(a.Count) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d rows", a.Count), Actual: fmt.Sprint(*result.RowCount)}
		}
	case AssertGolden:
		return assertGolden(sc.GoldenPath(a), result.SQL)
	}
	return nil
}

func assertErrorCode(a Assertion, result *Result) error {
	if result.ErrorCode == "" {
		return &AssertionError{Type: a.Type, Expected: a.Code, Actual: "successful compile"}
	}
	if result.ErrorCode != a.Code {
		return &AssertionError{Type: a.Type, Expected: a.Code, Actual: result.ErrorCode}
	}
	return nil
}

func assertGolden(path, sql string) error {
	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("golden: %w", err)
	}
	if string(want) != sql {
		return &AssertionError{Type: AssertGolden, Expected: "statement in " + path, Actual: "\n" + sql}
	}
	return nil
}

// CountSetOps counts the lines of sql that consist of keyword alone, which
// is how the compiler separates set operands. Set operators nested inside
// a filter expression are not counted.
func CountSetOps(sql, keyword string) int {
	n := 0
	for _, line := range strings.Split(sql, "\n") {
		if strings.TrimSpace(line) == keyword {
			n++
		}
	}
	return n
}
