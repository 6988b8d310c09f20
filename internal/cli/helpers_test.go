package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the root command with an isolated config file and returns
// stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	return executeWithConfig(t, cfgPath, args...)
}

func executeWithConfig(t *testing.T, cfgPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const ageBandsRequest = `{
  "output": [{"table": "patients", "columns": ["subject_id"]}],
  "query": {"operator": "OR", "subqueries": [
    {"filters": [{"filter_type": "range", "table": "patients", "column": "anchor_age", "min": 0, "max": 18}]},
    {"filters": [{"filter_type": "range", "table": "patients", "column": "anchor_age", "min": 65, "max": 120}]}
  ]}
}`

const diagnosisRequest = `output:
  - table: patients
    columns: [subject_id]
query:
  filters:
    - {filter_type: value, table: d_icd_diagnoses, column: icd_code, value: I10}
`
