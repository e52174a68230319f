package report

import (
	"context"
	"slices"
	"time"
)

// Content is one titled block of report lines for a single day.
type Content struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
}

// Period is an inclusive range of days.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Result is one source's contribution over a period. Contents is keyed by
// date key (YYYY-MM-DD); days without activity have no key.
type Result struct {
	Title    string               `json:"title"`
	Contents map[string][]Content `json:"contents"`
	Period   Period               `json:"period"`
}

// MergedReport has the same shape as a single source result.
type MergedReport = Result

// Source turns one external activity feed into a Result.
type Source interface {
	Name() string
	Report(ctx context.Context, period Period) (Result, error)
}

// IsEmpty reports whether the result carries no day blocks.
func (r Result) IsEmpty() bool {
	return len(r.Contents) == 0
}

func cloneContents(blocks []Content) []Content {
	out := make([]Content, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, Content{Title: b.Title, Items: slices.Clone(b.Items)})
	}
	return out
}
