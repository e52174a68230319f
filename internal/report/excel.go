package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

type ExcelExporter struct {
	OutputDir string
}

func NewExcelExporter(outputDir string) *ExcelExporter {
	return &ExcelExporter{OutputDir: outputDir}
}

// Export writes a workbook with a per-day dashboard and the full activity
// list, and returns its path.
func (e *ExcelExporter) Export(r Result, generatedAt time.Time) (string, error) {
	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := generatedAt.Format("2006-01-02_15-04-05")
	filename := filepath.Join(e.OutputDir, fmt.Sprintf("summary_%s.xlsx", timestamp))

	f := excelize.NewFile()
	defer f.Close()

	if err := e.createDashboardSheet(f, "Dashboard", r); err != nil {
		return "", fmt.Errorf("failed to create dashboard: %w", err)
	}

	if err := e.createActivitySheet(f, "Activity", r); err != nil {
		return "", fmt.Errorf("failed to create activity sheet: %w", err)
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to remove default sheet: %w", err)
	}

	if idx, err := f.GetSheetIndex("Dashboard"); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(filename); err != nil {
		return "", fmt.Errorf("failed to save excel file: %w", err)
	}

	return filename, nil
}

func headerStyle(f *excelize.File, fill, font string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: font},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "#000000", Style: 1},
			{Type: "right", Color: "#000000", Style: 1},
			{Type: "top", Color: "#000000", Style: 1},
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
}

func (e *ExcelExporter) createDashboardSheet(f *excelize.File, sheetName string, r Result) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	header, err := headerStyle(f, "#4472C4", "#FFFFFF")
	if err != nil {
		return err
	}
	total, err := headerStyle(f, "#B4C7E7", "#000000")
	if err != nil {
		return err
	}

	sections, days := sectionCounts(r)

	f.SetCellValue(sheetName, "A1", "Date From:")
	f.SetCellValue(sheetName, "B1", r.Period.Start.Format("02-01-06"))
	f.SetCellValue(sheetName, "A2", "Date to:")
	f.SetCellValue(sheetName, "B2", r.Period.End.Format("02-01-06"))

	row := 4
	columns := append([]string{"Date"}, sections...)
	columns = append(columns, "Total")
	for i, name := range columns {
		cell := cellName(i+1, row)
		f.SetCellValue(sheetName, cell, name)
		f.SetCellStyle(sheetName, cell, cell, header)
	}
	row++

	totals := make(map[string]int)
	grand := 0
	for _, day := range days {
		f.SetCellValue(sheetName, cellName(1, row), day.date)
		dayTotal := 0
		for i, s := range sections {
			f.SetCellValue(sheetName, cellName(i+2, row), day.counts[s])
			totals[s] += day.counts[s]
			dayTotal += day.counts[s]
		}
		f.SetCellValue(sheetName, cellName(len(sections)+2, row), dayTotal)
		grand += dayTotal
		row++
	}

	f.SetCellValue(sheetName, cellName(1, row), "Total")
	for i, s := range sections {
		f.SetCellValue(sheetName, cellName(i+2, row), totals[s])
	}
	f.SetCellValue(sheetName, cellName(len(sections)+2, row), grand)
	f.SetCellStyle(sheetName, cellName(1, row), cellName(len(columns), row), total)

	f.SetColWidth(sheetName, "A", "A", 14)
	for i := 2; i <= len(columns); i++ {
		f.SetColWidth(sheetName, columnLetter(i), columnLetter(i), 22)
	}

	return nil
}

func (e *ExcelExporter) createActivitySheet(f *excelize.File, sheetName string, r Result) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	header, err := headerStyle(f, "#4472C4", "#FFFFFF")
	if err != nil {
		return err
	}

	headers := []string{"#", "Date", "Section", "Block", "Item"}
	for col, h := range headers {
		cell := cellName(col+1, 1)
		f.SetCellValue(sheetName, cell, h)
		f.SetCellStyle(sheetName, cell, cell, header)
	}

	row := 2
	for _, date := range SortedDates(r) {
		for _, block := range r.Contents[date] {
			for _, item := range block.Items {
				f.SetCellValue(sheetName, cellName(1, row), row-1)
				f.SetCellValue(sheetName, cellName(2, row), date)
				f.SetCellValue(sheetName, cellName(3, row), SectionName(block.Title))
				f.SetCellValue(sheetName, cellName(4, row), block.Title)
				f.SetCellValue(sheetName, cellName(5, row), item)
				row++
			}
		}
	}

	f.SetColWidth(sheetName, "A", "A", 5)
	f.SetColWidth(sheetName, "B", "B", 14)
	f.SetColWidth(sheetName, "C", "C", 24)
	f.SetColWidth(sheetName, "D", "D", 30)
	f.SetColWidth(sheetName, "E", "E", 60)

	f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	return nil
}

func cellName(col, row int) string {
	return fmt.Sprintf("%s%d", columnLetter(col), row)
}

func columnLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
