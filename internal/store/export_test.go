package store

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCSV(t *testing.T) {
	s := createPatientStore(t, 3)

	cur, err := s.Execute(t.Context(), "SELECT subject_id, gender, dod FROM patients ORDER BY subject_id")
	require.NoError(t, err)
	defer cur.Close()

	var buf bytes.Buffer
	n, err := ExportCSV(t.Context(), cur, &buf, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	want := strings.Join([]string{
		"subject_id,gender,dod",
		"1,F,",
		"2,M,",
		"3,F,2180-01-03",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestExportCSV_EmptyResult(t *testing.T) {
	s := createPatientStore(t, 2)

	cur, err := s.Execute(t.Context(), "SELECT subject_id FROM patients WHERE subject_id > 100")
	require.NoError(t, err)
	defer cur.Close()

	var buf bytes.Buffer
	n, err := ExportCSV(t.Context(), cur, &buf, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "subject_id\n", buf.String())
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{[]byte("abc"), "abc"},
		{"x", "x"},
		{int64(42), "42"},
		{float64(1.5), "1.5"},
		{true, "true"},
		{time.Date(2150, 3, 4, 5, 6, 7, 0, time.UTC), "2150-03-04 05:06:07"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.in))
	}
}
