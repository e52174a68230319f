package report

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

//go:embed "templates"
var templateFS embed.FS

const defaultTemplate = "templates/email.html"

// Placeholders substituted by RenderHTML.
const (
	PlaceholderPeriod    = "{{PERIOD}}"
	PlaceholderReports   = "{{REPORTS}}"
	PlaceholderGenerated = "{{GENERATED_DATE}}"
)

// ErrTemplate is returned when a template lacks a placeholder or repeats one.
var ErrTemplate = errors.New("invalid report template")

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeHTML escapes the characters &<>"' for insertion into HTML.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// LoadTemplate reads the HTML template at path, or the embedded default when
// path is empty.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		data, err := templateFS.ReadFile(defaultTemplate)
		if err != nil {
			return "", fmt.Errorf("failed to read embedded template: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return string(data), nil
}

// RenderHTML fills tmpl with the rendered reports. Each placeholder must occur
// exactly once in tmpl. Substitution happens in one pass, so report text that
// looks like a placeholder is left alone.
func RenderHTML(tmpl string, reports []Result, generatedAt time.Time) (string, error) {
	for _, token := range []string{PlaceholderPeriod, PlaceholderReports, PlaceholderGenerated} {
		if n := strings.Count(tmpl, token); n != 1 {
			return "", fmt.Errorf("%w: %s occurs %d times", ErrTemplate, token, n)
		}
	}

	periodText := ""
	if len(reports) > 0 {
		periodText = PeriodText(reports[0].Period)
	}

	var rows strings.Builder
	for _, r := range reports {
		for _, date := range SortedDates(r) {
			blocks := r.Contents[date]
			if len(blocks) == 0 {
				continue
			}
			rows.WriteString(`<tr><td class="report-section">`)
			fmt.Fprintf(&rows, `<h3 class="day">%s</h3>`, EscapeHTML(date))
			for _, block := range blocks {
				fmt.Fprintf(&rows, "<h4>%s</h4>", EscapeHTML(block.Title))
				for _, item := range block.Items {
					fmt.Fprintf(&rows, `<p class="day-item">%s</p>`, EscapeHTML(item))
				}
			}
			rows.WriteString("</td></tr>")
		}
	}

	r := strings.NewReplacer(
		PlaceholderPeriod, EscapeHTML(periodText),
		PlaceholderReports, rows.String(),
		PlaceholderGenerated, EscapeHTML(GeneratedText(generatedAt)),
	)
	return r.Replace(tmpl), nil
}
