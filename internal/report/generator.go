package report

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Generator struct {
	Sources []Source
	// Strict turns any single source failure into a failed run.
	Strict bool
}

func NewGenerator(sources ...Source) *Generator {
	return &Generator{Sources: sources}
}

type sourceOutcome struct {
	result Result
	err    error
}

// Generate runs every source over period and returns their results in source
// order. Failed sources are logged and left out unless Strict is set, in which
// case the first failure cancels the remaining sources. It is an error when
// every source fails.
func (g *Generator) Generate(ctx context.Context, period Period) ([]Result, error) {
	logger := zerolog.Ctx(ctx)

	outcomes := make([]sourceOutcome, len(g.Sources))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, src := range g.Sources {
		group.Go(func() error {
			logger.Info().Str("source", src.Name()).Msg("fetching activity")
			res, err := src.Report(groupCtx, period)
			outcomes[i] = sourceOutcome{result: res, err: err}
			if err != nil && g.Strict {
				return fmt.Errorf("%s: %w", src.Name(), err)
			}
			return nil
		})
	}
	groupErr := group.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if groupErr != nil {
		logger.Error().Err(groupErr).Msg("source failed")
		return nil, groupErr
	}

	var all []Result
	errors := make(map[string]error)
	for i, out := range outcomes {
		name := g.Sources[i].Name()
		if out.err != nil {
			errors[name] = out.err
			logger.Error().Err(out.err).Str("source", name).Msg("source failed")
			continue
		}
		logger.Info().Str("source", name).Int("days", len(out.result.Contents)).Msg("source fetched")
		all = append(all, out.result)
	}

	if len(all) == 0 && len(errors) > 0 {
		return nil, fmt.Errorf("failed to fetch from all sources: %v", errors)
	}

	return all, nil
}

// Statistics summarises a report for the console and the exporters.
func (g *Generator) Statistics(r Result) map[string]any {
	stats := make(map[string]any)

	byTitle := make(map[string]int)
	blocks, items := 0, 0
	for _, day := range r.Contents {
		for _, block := range day {
			blocks++
			items += len(block.Items)
			byTitle[block.Title]++
		}
	}

	stats["days"] = len(r.Contents)
	stats["blocks"] = blocks
	stats["items"] = items
	stats["by_title"] = byTitle
	return stats
}
