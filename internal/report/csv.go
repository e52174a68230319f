package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type CSVExporter struct {
	OutputDir string
}

func NewCSVExporter(outputDir string) *CSVExporter {
	return &CSVExporter{OutputDir: outputDir}
}

// Export writes an activity list and a per-day dashboard for r and returns
// the paths written.
func (e *CSVExporter) Export(r Result, generatedAt time.Time) ([]string, error) {
	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := generatedAt.Format("2006-01-02_15-04-05")

	activity, err := e.exportActivity(r, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to export activity list: %w", err)
	}

	dashboard, err := e.exportDashboard(r, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to export dashboard: %w", err)
	}

	return []string{activity, dashboard}, nil
}

func (e *CSVExporter) exportActivity(r Result, timestamp string) (string, error) {
	filename := filepath.Join(e.OutputDir, fmt.Sprintf("summary_%s_activity.csv", timestamp))
	file, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"#", "Date", "Section", "Block", "Item"}); err != nil {
		return "", err
	}

	n := 0
	for _, date := range SortedDates(r) {
		for _, block := range r.Contents[date] {
			for _, item := range block.Items {
				n++
				row := []string{strconv.Itoa(n), date, SectionName(block.Title), block.Title, item}
				if err := writer.Write(row); err != nil {
					return "", err
				}
			}
		}
	}

	writer.Flush()
	return filename, writer.Error()
}

func (e *CSVExporter) exportDashboard(r Result, timestamp string) (string, error) {
	filename := filepath.Join(e.OutputDir, fmt.Sprintf("summary_%s_dashboard.csv", timestamp))
	file, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	sections, days := sectionCounts(r)

	if err := writer.Write([]string{"Date From:", r.Period.Start.Format("02-01-06")}); err != nil {
		return "", err
	}
	if err := writer.Write([]string{"Date to:", r.Period.End.Format("02-01-06")}); err != nil {
		return "", err
	}
	if err := writer.Write([]string{""}); err != nil {
		return "", err
	}

	header := append([]string{"Date"}, sections...)
	header = append(header, "Total")
	if err := writer.Write(header); err != nil {
		return "", err
	}

	totals := make(map[string]int)
	grand := 0
	for _, day := range days {
		row := []string{day.date}
		dayTotal := 0
		for _, s := range sections {
			row = append(row, strconv.Itoa(day.counts[s]))
			totals[s] += day.counts[s]
			dayTotal += day.counts[s]
		}
		row = append(row, strconv.Itoa(dayTotal))
		grand += dayTotal
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}

	totalsRow := []string{"Total"}
	for _, s := range sections {
		totalsRow = append(totalsRow, strconv.Itoa(totals[s]))
	}
	totalsRow = append(totalsRow, strconv.Itoa(grand))
	if err := writer.Write(totalsRow); err != nil {
		return "", err
	}

	writer.Flush()
	return filename, writer.Error()
}
