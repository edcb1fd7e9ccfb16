package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaryTable() Table {
	return Table{
		Title:   "Internship Placement Summary",
		Columns: []string{"Department", "Total", "Approved"},
		Rows: [][]string{
			{"CSE", "10", "2"},
			{"ME", "4", "0"},
		},
	}
}

func TestCSVExporterPreservesRowOrder(t *testing.T) {
	content, err := NewCSVExporter().Render(summaryTable())
	require.NoError(t, err)
	assert.Equal(t, "Department,Total,Approved\nCSE,10,2\nME,4,0\n", string(content))
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	table := summaryTable()
	table.Rows = append(table.Rows, []string{"EEE"})
	_, err := NewCSVExporter().Render(table)
	assert.Error(t, err)
}

func TestCSVExporterRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Table{})
	assert.Error(t, err)
}

func TestPDFExporterRendersTable(t *testing.T) {
	content, err := NewPDFExporter().Render(summaryTable())
	require.NoError(t, err)
	require.Greater(t, len(content), 4)
	assert.Equal(t, "%PDF", string(content[:4]))
}
