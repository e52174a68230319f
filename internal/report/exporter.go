package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Exporter struct {
	OutputDir string
}

func NewExporter(outputDir string) *Exporter {
	return &Exporter{OutputDir: outputDir}
}

// DocumentDay is one day of a Document.
type DocumentDay struct {
	Date   string    `json:"date"`
	Blocks []Content `json:"blocks"`
}

// Document is the JSON shape of a report, with days as an ordered list.
type Document struct {
	Title       string        `json:"title"`
	PeriodStart string        `json:"period_start"`
	PeriodEnd   string        `json:"period_end"`
	GeneratedAt time.Time     `json:"generated_at"`
	Days        []DocumentDay `json:"days"`
}

func NewDocument(r Result, generatedAt time.Time) Document {
	doc := Document{
		Title:       r.Title,
		PeriodStart: r.Period.Start.Format(DateKeyLayout),
		PeriodEnd:   r.Period.End.Format(DateKeyLayout),
		GeneratedAt: generatedAt,
		Days:        []DocumentDay{},
	}
	for _, date := range SortedDates(r) {
		doc.Days = append(doc.Days, DocumentDay{Date: date, Blocks: r.Contents[date]})
	}
	return doc
}

// ExportJSON writes r as a Document.
func (e *Exporter) ExportJSON(r Result, filename string, generatedAt time.Time) (string, error) {
	doc := NewDocument(r, generatedAt)

	data, err := json.MarshalIndent(doc, "", "\t")
	if err != nil {
		return "", err
	}

	return e.write(filename, data)
}

// ExportText writes the plain text rendering of r.
func (e *Exporter) ExportText(r Result, filename string, generatedAt time.Time) (string, error) {
	return e.write(filename, []byte(RenderText([]Result{r}, generatedAt)))
}

// ExportHTML writes the HTML rendering of r using tmpl.
func (e *Exporter) ExportHTML(r Result, tmpl, filename string, generatedAt time.Time) (string, error) {
	html, err := RenderHTML(tmpl, []Result{r}, generatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return e.write(filename, []byte(html))
}

func (e *Exporter) write(filename string, data []byte) (string, error) {
	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(e.OutputDir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

var sectionCaser = cases.Title(language.English)

// SectionName reduces a block title to its section, e.g. "Meetings: 3 (1h 0m)"
// becomes "Meetings".
func SectionName(title string) string {
	name, _, _ := strings.Cut(title, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return "Other"
	}
	return sectionCaser.String(strings.ToLower(name))
}

type dayCounts struct {
	date   string
	counts map[string]int
}

// sectionCounts counts items per section for every day of r. Sections are
// returned in order of first appearance.
func sectionCounts(r Result) ([]string, []dayCounts) {
	var sections []string
	seen := make(map[string]bool)
	var days []dayCounts

	for _, date := range SortedDates(r) {
		day := dayCounts{date: date, counts: make(map[string]int)}
		for _, block := range r.Contents[date] {
			name := SectionName(block.Title)
			if !seen[name] {
				seen[name] = true
				sections = append(sections, name)
			}
			day.counts[name] += len(block.Items)
		}
		days = append(days, day)
	}
	return sections, days
}
