package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cohort/internal/querysql"
	"github.com/roach88/cohort/internal/store"
)

// createClinicalDB writes a small patients table to a new database file.
func createClinicalDB(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "mimic.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.ExecScript(context.Background(),
		`CREATE TABLE patients (subject_id INTEGER PRIMARY KEY, gender TEXT, anchor_age INTEGER)`,
		`INSERT INTO patients VALUES (1, 'F', 10), (2, 'M', 40), (3, 'F', 70), (4, 'M', 90)`,
	))
	return path
}

func TestRun_ExportsCSVAndRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	db := createClinicalDB(t, dir)
	req := writeFile(t, dir, "bands.json", ageBandsRequest)
	out := filepath.Join(dir, "out", "bands.csv")

	stdout, _, err := execute(t, "run", req, "--db", db, "-o", out, "--chunk-size", "2", "--format", "json")
	require.NoError(t, err, stdout)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(3), resp.Data.Rows)
	assert.NotEmpty(t, resp.Data.RunID)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"subject_id", "1", "3", "4"}, splitLines(string(data)))

	stdout, _, err = execute(t, "history", "--db", db, "--format", "json")
	require.NoError(t, err)
	var hist struct {
		Data []store.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &hist))
	require.Len(t, hist.Data, 1)
	assert.Equal(t, resp.Data.RunID, hist.Data[0].ID)
	assert.Equal(t, resp.Data.Fingerprint, hist.Data[0].Fingerprint)
	assert.Equal(t, int64(3), hist.Data[0].RowCount)
	assert.Equal(t, out, hist.Data[0].OutputPath)
}

func TestRun_NoHistory(t *testing.T) {
	dir := t.TempDir()
	db := createClinicalDB(t, dir)
	req := writeFile(t, dir, "bands.json", ageBandsRequest)

	_, _, err := execute(t, "run", req, "--db", db, "-o", filepath.Join(dir, "x.csv"), "--no-history")
	require.NoError(t, err)

	stdout, _, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs recorded.")
}

// dbState captures what a run must not change in a database it only reads.
type dbState struct {
	Objects     []string
	UserVersion int
	JournalMode string
}

func readDBState(t *testing.T, path string) dbState {
	t.Helper()
	st, err := store.OpenReadOnly(path)
	require.NoError(t, err)
	defer st.Close()

	var state dbState
	rows, err := st.DB().Query("SELECT type || ':' || name FROM sqlite_master ORDER BY type, name")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var obj string
		require.NoError(t, rows.Scan(&obj))
		state.Objects = append(state.Objects, obj)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, st.DB().QueryRow("PRAGMA user_version").Scan(&state.UserVersion))
	require.NoError(t, st.DB().QueryRow("PRAGMA journal_mode").Scan(&state.JournalMode))
	return state
}

func TestRun_NoHistoryLeavesDatabaseUnchanged(t *testing.T) {
	dir := t.TempDir()
	db := createClinicalDB(t, dir)
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.ExecScript(context.Background(), "PRAGMA user_version = 42"))
	require.NoError(t, st.Close())
	before := readDBState(t, db)
	require.Equal(t, 42, before.UserVersion)

	req := writeFile(t, dir, "bands.json", ageBandsRequest)
	_, _, err = execute(t, "run", req, "--db", db, "-o", filepath.Join(dir, "x.csv"), "--no-history")
	require.NoError(t, err)

	cfgPath := writeFile(t, dir, "config.yaml", "history: false\n")
	_, _, err = executeWithConfig(t, cfgPath, "run", req, "--db", db, "-o", filepath.Join(dir, "y.csv"))
	require.NoError(t, err)

	_, _, err = execute(t, "history", "--db", db)
	require.NoError(t, err)

	assert.Equal(t, before, readDBState(t, db))
}

func TestRun_HistoryKeepsUserVersion(t *testing.T) {
	dir := t.TempDir()
	db := createClinicalDB(t, dir)
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.ExecScript(context.Background(), "PRAGMA user_version = 42"))
	require.NoError(t, st.Close())

	req := writeFile(t, dir, "bands.json", ageBandsRequest)
	_, _, err = execute(t, "run", req, "--db", db, "-o", filepath.Join(dir, "x.csv"))
	require.NoError(t, err)

	after := readDBState(t, db)
	assert.Equal(t, 42, after.UserVersion)
	assert.Equal(t, "delete", after.JournalMode)
	assert.Contains(t, after.Objects, "table:cohort_runs")
}

func TestExport_FailureRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	db := createClinicalDB(t, dir)
	st, err := store.OpenReadOnly(db)
	require.NoError(t, err)
	defer st.Close()

	// abs() of the smallest integer overflows on the second row, after the
	// first chunk has been written.
	res := querysql.Result{SQL: `
		SELECT subject_id, abs(CASE WHEN subject_id = 2 THEN -9223372036854775807 - 1 ELSE subject_id END) AS v
		FROM patients ORDER BY subject_id`}
	out := filepath.Join(dir, "partial.csv")

	_, err = export(context.Background(), st, res, out, 1)
	require.Error(t, err)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "partial CSV left behind")
}

func TestRun_DefaultOutputPathFromConfig(t *testing.T) {
	dir := t.TempDir()
	db := createClinicalDB(t, dir)
	outDir := filepath.Join(dir, "exports")
	cfgPath := writeFile(t, dir, "config.yaml", "database_path: "+db+"\noutput_path: "+outDir+"\n")
	req := writeFile(t, dir, "bands.json", ageBandsRequest)

	stdout, _, err := executeWithConfig(t, cfgPath, "run", req)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Exported 3 row(s) to "+outDir)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".csv", filepath.Ext(entries[0].Name()))
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	db := createClinicalDB(t, dir)
	bands := writeFile(t, dir, "bands.json", ageBandsRequest)
	diag := writeFile(t, dir, "diag.yaml", diagnosisRequest)

	_, _, err := execute(t, "run", bands, "--db", filepath.Join(dir, "absent.db"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "run", diag, "--db", db)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// admissions is not in the fixture database.
	_, _, err = execute(t, "run", diag, "--db", db, "--context", "hospital", "-o", filepath.Join(dir, "d.csv"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
