// Package weeklyreport wires the configured activity sources, builds the
// merged weekly report and delivers it.
package weeklyreport

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Afrawles/weeklyreport/internal/calendar"
	"github.com/Afrawles/weeklyreport/internal/config"
	"github.com/Afrawles/weeklyreport/internal/email"
	"github.com/Afrawles/weeklyreport/internal/github"
	"github.com/Afrawles/weeklyreport/internal/oauth"
	"github.com/Afrawles/weeklyreport/internal/report"
)

const Title = "Weekly Activity Report"

type Application struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Location  *time.Location
	Generator *report.Generator
	Exporter  *report.Exporter
	Sender    email.Sender
	Template  string
	Console   io.Writer
	// DryRun prints the report instead of mailing it.
	DryRun bool
	Now    func() time.Time
}

type Option func(*Application)

// WithSources replaces the sources built from the configuration.
func WithSources(sources ...report.Source) Option {
	return func(app *Application) { app.Generator.Sources = sources }
}

func WithSender(sender email.Sender) Option {
	return func(app *Application) { app.Sender = sender }
}

func WithConsole(w io.Writer) Option {
	return func(app *Application) { app.Console = w }
}

func WithClock(now func() time.Time) Option {
	return func(app *Application) { app.Now = now }
}

func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Application, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	tmpl, err := report.LoadTemplate(cfg.Output.Template)
	if err != nil {
		return nil, err
	}

	sources, err := buildSources(cfg, loc, logger)
	if err != nil {
		return nil, err
	}

	app := &Application{
		Config:    cfg,
		Logger:    logger,
		Location:  loc,
		Generator: report.NewGenerator(sources...),
		Exporter:  report.NewExporter(cfg.Output.Directory),
		Template:  tmpl,
		Console:   os.Stdout,
		Now:       time.Now,
	}

	if cfg.Email.Enabled {
		app.Sender = email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.User,
			Password: cfg.Email.Password,
		})
	}

	for _, opt := range opts {
		opt(app)
	}
	return app, nil
}

// buildSources returns the calendar source first and GitHub second; the
// merged report keeps that order within a day.
func buildSources(cfg *config.Config, loc *time.Location, logger zerolog.Logger) ([]report.Source, error) {
	var sources []report.Source

	events, err := eventSource(cfg, loc)
	if err != nil {
		return nil, err
	}
	if events != nil {
		mode, err := calendar.ParseMode(cfg.Calendar.Mode)
		if err != nil {
			return nil, err
		}
		opts := []calendar.AdapterOption{calendar.WithLocation(loc), calendar.WithMode(mode)}
		if len(cfg.Calendar.Exclude) > 0 {
			opts = append(opts, calendar.WithExclude(cfg.Calendar.Exclude))
		}
		sources = append(sources, calendar.NewAdapter(events, opts...))
		logger.Info().Str("provider", cfg.Calendar.Provider).Str("mode", string(mode)).Msg("calendar source initialized")
	}

	if len(cfg.GitHub.Tokens) > 0 && cfg.GitHub.Username != "" {
		sources = append(sources, github.NewTokenAdapter(
			cfg.GitHub.Tokens,
			cfg.GitHub.Username,
			[]github.ClientOption{github.WithRateLimit(cfg.GitHub.RequestsPerSecond)},
			github.WithLocation(loc),
		))
		logger.Info().Int("tokens", len(cfg.GitHub.Tokens)).Str("username", cfg.GitHub.Username).Msg("GitHub source initialized")
	}

	return sources, nil
}

func eventSource(cfg *config.Config, loc *time.Location) (calendar.EventSource, error) {
	switch cfg.Calendar.Provider {
	case config.ProviderGoogle:
		storage := oauth.NewTokenStorage(cfg.Calendar.TokenDir)
		flow := oauth.NewFlow(oauth.GoogleConfig(cfg.Calendar.ClientID, cfg.Calendar.ClientSecret))
		refresh := storage.RefreshToken(calendar.TokenProvider, cfg.Calendar.RefreshToken)
		return calendar.NewGoogleClient(flow, refresh, cfg.Calendar.CalendarID, calendar.WithTokenSaver(storage)), nil
	case config.ProviderICS:
		return calendar.NewICSSource(cfg.Calendar.ICSURL, loc, nil), nil
	case config.ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown calendar provider %q", cfg.Calendar.Provider)
	}
}

// DefaultPeriod is the week ending at the start of today in the configured
// zone.
func (app *Application) DefaultPeriod() report.Period {
	return DefaultPeriod(app.Now(), app.Location)
}

// Build generates every source over period and merges the results.
func (app *Application) Build(ctx context.Context, period report.Period) (report.MergedReport, error) {
	ctx = app.Logger.WithContext(ctx)

	app.Logger.Info().
		Str("start", report.ToIsoDate(period.Start, app.Location)).
		Str("end", report.ToIsoDate(period.End, app.Location)).
		Int("sources", len(app.Generator.Sources)).
		Msg("generating report")

	results, err := app.Generator.Generate(ctx, period)
	if err != nil {
		app.Logger.Error().Err(err).Msg("failed to generate report")
		return report.MergedReport{}, err
	}

	merged := report.Merge(Title, results...)
	merged.Period = period

	stats := app.Generator.Statistics(merged)
	app.Logger.Info().
		Interface("days", stats["days"]).
		Interface("blocks", stats["blocks"]).
		Interface("items", stats["items"]).
		Msg("report generated")

	return merged, nil
}

// Deliver mails merged when email is enabled, prints it otherwise, and writes
// the configured file exports.
func (app *Application) Deliver(ctx context.Context, merged report.MergedReport) error {
	generatedAt := app.Now().In(app.Location)

	if app.Sender != nil && !app.DryRun {
		if merged.IsEmpty() {
			app.Logger.Warn().Msg("no activity found for this period, skipping email")
		} else {
			msg, err := Compose(app.Config.Email, merged, app.Template, generatedAt)
			if err != nil {
				return err
			}
			if err := app.Sender.Send(ctx, msg); err != nil {
				app.Logger.Error().Err(err).Msg("failed to send email report")
				return err
			}
			app.Logger.Info().Strs("to", msg.To).Msg("email report sent")
		}
	} else {
		if _, err := io.WriteString(app.Console, report.RenderText([]report.Result{merged}, generatedAt)+"\n"); err != nil {
			return fmt.Errorf("failed to print report: %w", err)
		}
	}

	app.export(merged, generatedAt)
	return nil
}

// Run builds and delivers the report for period.
func (app *Application) Run(ctx context.Context, period report.Period) error {
	merged, err := app.Build(ctx, period)
	if err != nil {
		return err
	}
	return app.Deliver(ctx, merged)
}

func (app *Application) export(merged report.MergedReport, generatedAt time.Time) {
	if len(app.Config.Output.Formats) == 0 {
		return
	}

	timestamp := generatedAt.Format("20060102")
	base := fmt.Sprintf("weekly_report_%s", timestamp)

	for _, format := range app.Config.Output.Formats {
		var (
			files []string
			err   error
		)

		switch strings.ToLower(strings.TrimSpace(format)) {
		case "json":
			files, err = one(app.Exporter.ExportJSON(merged, base+".json", generatedAt))
		case "txt", "text":
			files, err = one(app.Exporter.ExportText(merged, base+".txt", generatedAt))
		case "html":
			files, err = one(app.Exporter.ExportHTML(merged, app.Template, base+".html", generatedAt))
		case "csv":
			files, err = report.NewCSVExporter(app.Config.Output.Directory).Export(merged, generatedAt)
		case "xlsx", "excel":
			files, err = one(report.NewExcelExporter(app.Config.Output.Directory).Export(merged, generatedAt))
		default:
			app.Logger.Warn().Str("format", format).Msg("unknown export format")
			continue
		}

		if err != nil {
			app.Logger.Error().Err(err).Str("format", format).Msg("failed to export report")
			continue
		}
		app.Logger.Info().Str("format", format).Strs("files", files).Msg("report exported")
	}
}

func one(path string, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// Compose renders merged into a mail with text and HTML bodies.
func Compose(cfg config.EmailConfig, merged report.MergedReport, tmpl string, generatedAt time.Time) (email.Message, error) {
	html, err := report.RenderHTML(tmpl, []report.Result{merged}, generatedAt)
	if err != nil {
		return email.Message{}, fmt.Errorf("failed to render HTML report: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = merged.Title
	}

	return email.Message{
		From:    cfg.From,
		To:      cfg.To,
		Subject: subject,
		Text:    report.RenderText([]report.Result{merged}, generatedAt),
		HTML:    html,
	}, nil
}
