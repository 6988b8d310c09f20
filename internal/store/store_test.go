package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.ExecScript(t.Context(), `CREATE TABLE patients (subject_id INTEGER)`))

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		_, err = s.RecordRun(t.Context(), Run{Fingerprint: "fp", SQL: "SELECT 1"})
		require.NoError(t, err, "iteration %d", i)
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.ListRuns(t.Context(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestOpen_LeavesDatabaseUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinical.db")
	seed, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = seed.Exec(`CREATE TABLE patients (subject_id INTEGER PRIMARY KEY); PRAGMA user_version = 42`)
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	cur, err := s.Execute(t.Context(), "SELECT subject_id FROM patients")
	require.NoError(t, err)
	require.NoError(t, cur.Close())
	runs, err := s.ListRuns(t.Context(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	assert.NoError(t, s.verifyPragma("user_version", "42"))
	assert.NoError(t, s.verifyPragma("journal_mode", "delete"))
	assert.Equal(t, []string{"patients"}, getTableNames(t, s.db))
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinical.db")
	rw, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, rw.ExecScript(t.Context(), `CREATE TABLE patients (subject_id INTEGER)`, `INSERT INTO patients VALUES (1)`))
	require.NoError(t, rw.Close())

	s, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer s.Close()

	cur, err := s.Execute(t.Context(), "SELECT subject_id FROM patients")
	require.NoError(t, err)
	rows, err := cur.FetchChunk(10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	require.NoError(t, cur.Close())

	assert.Error(t, s.ExecScript(t.Context(), `INSERT INTO patients VALUES (2)`))
	_, err = s.RecordRun(t.Context(), Run{Fingerprint: "fp", SQL: "SELECT 1"})
	assert.Error(t, err)
	assert.Equal(t, []string{"patients"}, getTableNames(t, s.db))
}

func TestOpenReadOnly_MissingFile(t *testing.T) {
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "absent.db"))
	assert.Error(t, err)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"journal_mode", "delete"},
		{"user_version", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, s.verifyPragma(tt.name, tt.expected))
		})
	}
}

func TestSchema_CreatedOnFirstRun(t *testing.T) {
	s := createTestStore(t)
	assert.Empty(t, getTableNames(t, s.db))

	_, err := s.RecordRun(t.Context(), Run{Fingerprint: "fp", SQL: "SELECT 1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"cohort_runs", "cohort_schema"}, getTableNames(t, s.db))

	cols := getTableColumns(t, s.db, "cohort_runs")
	for _, col := range []string{"id", "fingerprint", "context", "dialect", "sql", "row_count", "output_path", "created_at"} {
		assert.Contains(t, cols, col)
	}

	indexes := getTableIndexes(t, s.db, "cohort_runs")
	assert.Contains(t, indexes, "idx_cohort_runs_fingerprint")
	assert.Contains(t, indexes, "idx_cohort_runs_created")

	var version int
	require.NoError(t, s.db.QueryRow("SELECT version FROM cohort_schema WHERE id = 1").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
	assert.NoError(t, s.verifyPragma("user_version", "0"))
}

func TestExecScript_ReportsFailingStatement(t *testing.T) {
	s := createTestStore(t)

	err := s.ExecScript(t.Context(), "CREATE TABLE a (x INTEGER)", "NOT SQL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 1")
}
