package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRun_FillsDefaults(t *testing.T) {
	s := createTestStore(t)

	run, err := s.RecordRun(t.Context(), Run{Fingerprint: "abc", SQL: "SELECT 1", RowCount: 1})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "sqlite", run.Dialect)
	assert.False(t, run.CreatedAt.IsZero())
	assert.Equal(t, time.UTC, run.CreatedAt.Location())
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, fp := range []string{"first", "second", "third"} {
		_, err := s.RecordRun(t.Context(), Run{
			Fingerprint: fp,
			Context:     "hospital",
			SQL:         "SELECT 1",
			CreatedAt:   base.Add(time.Duration(i) * 500 * time.Millisecond),
		})
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "third", runs[0].Fingerprint)
	assert.Equal(t, "second", runs[1].Fingerprint)
	assert.Equal(t, "first", runs[2].Fingerprint)
	assert.True(t, runs[2].CreatedAt.Equal(base))
	assert.Equal(t, "hospital", runs[0].Context)

	limited, err := s.ListRuns(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "third", limited[0].Fingerprint)
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(t.Context(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
