package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSectionName(t *testing.T) {
	tests := map[string]string{
		"Meetings: 3 (1h 0m)":      "Meetings",
		"Pull Requests Opened:":    "Pull Requests Opened",
		"Projects Contributed To:": "Projects Contributed To",
		"":                         "Other",
		": orphan":                 "Other",
	}
	for title, want := range tests {
		assert.Equal(t, want, SectionName(title), title)
	}
}

func TestExporter_JSONListsDaysInOrder(t *testing.T) {
	dir := t.TempDir()

	path, err := NewExporter(dir).ExportJSON(sampleReport(), "report.json", generatedAt)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Weekly Activity Report", doc.Title)
	assert.Equal(t, "2024-01-01", doc.PeriodStart)
	assert.Equal(t, "2024-01-08", doc.PeriodEnd)
	require.Len(t, doc.Days, 2)
	assert.Equal(t, "2024-01-02", doc.Days[0].Date)
	assert.Equal(t, "Meetings: 1 (30m)", doc.Days[0].Blocks[0].Title)
	assert.Equal(t, "2024-01-03", doc.Days[1].Date)
}

func TestExporter_TextAndHTML(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(dir)

	txt, err := e.ExportText(sampleReport(), "report.txt", generatedAt)
	require.NoError(t, err)
	data, err := os.ReadFile(txt)
	require.NoError(t, err)
	assert.Contains(t, string(data), "• Standup")

	_, err = e.ExportHTML(sampleReport(), "no placeholders", "report.html", generatedAt)
	assert.ErrorIs(t, err, ErrTemplate)
}

func TestCSVExporter_WritesActivityAndDashboard(t *testing.T) {
	dir := t.TempDir()

	paths, err := NewCSVExporter(dir).Export(sampleReport(), generatedAt)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "summary_2024-01-08_09-15-00_activity.csv"), paths[0])

	activity := readCSV(t, paths[0])
	require.Len(t, activity, 6)
	assert.Equal(t, []string{"#", "Date", "Section", "Block", "Item"}, activity[0])
	assert.Equal(t, []string{"1", "2024-01-02", "Meetings", "Meetings: 1 (30m)", "• Standup"}, activity[1])

	dashboard := readCSV(t, paths[1])
	assert.Equal(t, []string{"Date From:", "01-01-24"}, dashboard[0])
	assert.Contains(t, dashboard, []string{"Date", "Meetings", "Total Code Changes", "Pull Requests Opened", "Total"})
	assert.Contains(t, dashboard, []string{"2024-01-02", "1", "3", "0", "4"})
	assert.Equal(t, []string{"Total", "1", "3", "1", "5"}, dashboard[len(dashboard)-1])
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExcelExporter_WritesBothSheets(t *testing.T) {
	dir := t.TempDir()

	path, err := NewExcelExporter(dir).Export(sampleReport(), generatedAt)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Dashboard", "Activity"}, f.GetSheetList())

	item, err := f.GetCellValue("Activity", "E2")
	require.NoError(t, err)
	assert.Equal(t, "• Standup", item)

	header, err := f.GetCellValue("Dashboard", "B4")
	require.NoError(t, err)
	assert.Equal(t, "Meetings", header)
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(1))
	assert.Equal(t, "Z", columnLetter(26))
	assert.Equal(t, "AA", columnLetter(27))
	assert.Equal(t, "C7", cellName(3, 7))
}
