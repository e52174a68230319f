package report

import (
	"fmt"
	"strings"
	"time"
)

const (
	bannerWidth   = 60
	periodLayout  = "January 2, 2006"
	generatedWith = "2006-01-02 15:04:05 MST"
)

// PeriodText is the human readable period line shared by both renderers.
func PeriodText(p Period) string {
	return fmt.Sprintf("Period: %s - %s", p.Start.Format(periodLayout), p.End.Format(periodLayout))
}

// GeneratedText formats the generation timestamp with its zone abbreviation.
func GeneratedText(t time.Time) string {
	return t.Format(generatedWith)
}

// RenderText renders reports as a plain text document. Days are written in
// ascending date order.
func RenderText(reports []Result, generatedAt time.Time) string {
	banner := strings.Repeat("=", bannerWidth)
	rule := strings.Repeat("-", bannerWidth)

	title := "Activity Report"
	if len(reports) > 0 {
		title = reports[0].Title
	}

	lines := []string{banner, title, banner, ""}

	for _, r := range reports {
		lines = append(lines, rule, r.Title, PeriodText(r.Period), rule, "")

		for _, date := range SortedDates(r) {
			blocks := r.Contents[date]
			if len(blocks) == 0 {
				continue
			}
			lines = append(lines, date, "")
			for _, block := range blocks {
				lines = append(lines, block.Title)
				lines = append(lines, block.Items...)
				lines = append(lines, "")
			}
		}
	}

	lines = append(lines, banner, "Generated on "+GeneratedText(generatedAt), banner)
	return strings.Join(lines, "\n")
}
