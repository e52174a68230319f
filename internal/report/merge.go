package report

// Merge combines reports that cover the same period. Blocks for a date are
// concatenated in argument order and the period of the first report is kept.
// The inputs are not modified.
func Merge(title string, reports ...Result) MergedReport {
	merged := MergedReport{
		Title:    title,
		Contents: make(map[string][]Content),
	}
	if len(reports) > 0 {
		merged.Period = reports[0].Period
	}

	for _, r := range reports {
		for date, blocks := range r.Contents {
			merged.Contents[date] = append(merged.Contents[date], cloneContents(blocks)...)
		}
	}

	return merged
}
