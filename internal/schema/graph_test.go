package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cohort/internal/ir"
)

func link(parent, col string) ParentLink {
	return ParentLink{Parent: parent, ParentColumn: col, LocalColumn: col}
}

func TestNewGraphRejectsBrokenInvariants(t *testing.T) {
	tests := []struct {
		name   string
		root   string
		tables []Table
		table  string
	}{
		{
			name:   "missing root",
			root:   "patients",
			tables: []Table{{Name: "admissions", Parents: []ParentLink{link("patients", "subject_id")}}},
			table:  "patients",
		},
		{
			name: "root with parent",
			root: "patients",
			tables: []Table{
				{Name: "patients", Parents: []ParentLink{link("admissions", "subject_id")}},
				{Name: "admissions", Parents: []ParentLink{link("patients", "subject_id")}},
			},
			table: "patients",
		},
		{
			name: "second root",
			root: "patients",
			tables: []Table{
				{Name: "patients"},
				{Name: "orphans"},
			},
			table: "orphans",
		},
		{
			name: "unknown parent",
			root: "patients",
			tables: []Table{
				{Name: "patients"},
				{Name: "labevents", Parents: []ParentLink{link("labs", "subject_id")}},
			},
			table: "labevents",
		},
		{
			name: "duplicate table",
			root: "patients",
			tables: []Table{
				{Name: "patients"},
				{Name: "admissions", Parents: []ParentLink{link("patients", "subject_id")}},
				{Name: "admissions", Parents: []ParentLink{link("patients", "subject_id")}},
			},
			table: "admissions",
		},
		{
			name: "two links in one context",
			root: "patients",
			tables: []Table{
				{Name: "patients"},
				{Name: "a", Parents: []ParentLink{link("patients", "subject_id")}},
				{Name: "b", Parents: []ParentLink{link("patients", "subject_id")}},
				{Name: "codes", Parents: []ParentLink{
					{Parent: "a", ParentColumn: "code", LocalColumn: "code", Context: Hospital},
					{Parent: "b", ParentColumn: "code", LocalColumn: "code", Context: Hospital},
				}},
			},
			table: "codes",
		},
		{
			name: "unconditional link beside a contextual one",
			root: "patients",
			tables: []Table{
				{Name: "patients"},
				{Name: "a", Parents: []ParentLink{link("patients", "subject_id")}},
				{Name: "codes", Parents: []ParentLink{
					link("a", "code"),
					{Parent: "patients", ParentColumn: "code", LocalColumn: "code", Context: ED},
				}},
			},
			table: "codes",
		},
		{
			name: "cycle",
			root: "patients",
			tables: []Table{
				{Name: "patients"},
				{Name: "a", Parents: []ParentLink{link("b", "id")}},
				{Name: "b", Parents: []ParentLink{link("a", "id")}},
			},
			table: "a",
		},
		{
			name: "missing join column",
			root: "patients",
			tables: []Table{
				{Name: "patients"},
				{Name: "a", Parents: []ParentLink{{Parent: "patients", ParentColumn: "subject_id"}}},
			},
			table: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGraph(tt.root, tt.tables)
			require.Error(t, err)
			assert.Nil(t, g)
			assert.True(t, ir.IsCode(err, ir.ErrCodeInvalidSchema), "got %v", err)

			var ce *ir.CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.table, ce.Table)
		})
	}
}

func TestDefaultGraphShape(t *testing.T) {
	g := Default()

	assert.Equal(t, "patients", g.Root())
	assert.Len(t, g.Tables(), 46)
	assert.Equal(t, []Context{ED, Hospital}, g.Contexts())
	assert.Same(t, g, Default(), "Default must return the shared graph")

	admissions, ok := g.Table("admissions")
	require.True(t, ok)
	assert.Equal(t, []ParentLink{link("patients", "subject_id")}, admissions.Parents)

	dhcpcs, ok := g.Table("d_hcpcs")
	require.True(t, ok)
	assert.Equal(t, []ParentLink{{Parent: "hcpcsevents", ParentColumn: "hcpcs_cd", LocalColumn: "code"}}, dhcpcs.Parents)

	vitals, ok := g.Table("vitalsign")
	require.True(t, ok)
	assert.Equal(t, []ParentLink{link("edstays", "ed_stay_id")}, vitals.Parents)
}

func TestTablesSortedByName(t *testing.T) {
	tables := Default().Tables()
	for i := 1; i < len(tables); i++ {
		assert.Less(t, tables[i-1].Name, tables[i].Name)
	}
}

func TestIsAmbiguous(t *testing.T) {
	g := Default()

	tests := []struct {
		table string
		want  bool
	}{
		{"d_icd_diagnoses", true},
		{"diagnoses_icd", false},
		{"diagnosis", false},
		{"patients", false},
		{"d_hcpcs", false},
		{"not_a_table", false},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			assert.Equal(t, tt.want, g.IsAmbiguous(tt.table))
		})
	}
}

func TestIsAmbiguousFollowsAncestors(t *testing.T) {
	g, err := NewGraph("patients", []Table{
		{Name: "patients"},
		{Name: "a", Parents: []ParentLink{link("patients", "subject_id")}},
		{Name: "b", Parents: []ParentLink{link("patients", "subject_id")}},
		{Name: "codes", Parents: []ParentLink{
			{Parent: "a", ParentColumn: "code", LocalColumn: "code", Context: Hospital},
			{Parent: "b", ParentColumn: "code", LocalColumn: "code", Context: ED},
		}},
		{Name: "code_notes", Parents: []ParentLink{link("codes", "code")}},
	})
	require.NoError(t, err)

	assert.True(t, g.IsAmbiguous("code_notes"))
}

func TestParseContext(t *testing.T) {
	for _, in := range []string{"", "hospital", "ed"} {
		c, err := ParseContext(in)
		require.NoError(t, err)
		assert.Equal(t, Context(in), c)
	}

	_, err := ParseContext("icu")
	assert.True(t, ir.IsCode(err, ir.ErrCodeInvalidRequest))
}
