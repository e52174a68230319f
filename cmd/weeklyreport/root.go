package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Afrawles/weeklyreport/internal/config"
	"github.com/Afrawles/weeklyreport/internal/report"
	"github.com/Afrawles/weeklyreport/internal/weeklyreport"
)

var (
	configPath string
	envFile    string
	startDate  string
	endDate    string
	periodName string
	output     string
	formats    string
	dryRun     bool
	strict     bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "weeklyreport",
	Short: "Generate weekly activity reports",
	Long: `weeklyreport aggregates calendar meetings and GitHub contributions into a
day-by-day report and mails it, prints it or exports it to files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          generateReport,
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (YYYY-MM-DD)")
	rootCmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (YYYY-MM-DD)")
	rootCmd.Flags().StringVarP(&periodName, "period", "p", "", "Named period: "+joinNames(weeklyreport.PeriodNames))
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Output directory for exports")
	rootCmd.Flags().StringVarP(&formats, "format", "f", "", "Comma-separated export formats: json, txt, html, csv, xlsx")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the report instead of sending it")
	rootCmd.Flags().BoolVar(&strict, "strict", false, "Fail when any source fails")

	rootCmd.AddCommand(scheduleCmd, serveCmd, configCmd, authCmd)
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// loadConfig reads .env, the config file and the environment, then applies
// command line overrides.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotenv(envFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if output != "" {
		cfg.Output.Directory = output
	}
	if formats != "" {
		cfg.Output.Formats = config.SplitList(formats, ",")
	}

	return cfg, nil
}

// newApplication loads and validates the configuration and wires the sources.
func newApplication(logger zerolog.Logger) (*weeklyreport.Application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return weeklyreport.New(cfg, logger)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func logEnvironment(logger zerolog.Logger, cfg *config.Config, period report.Period, loc *time.Location) {
	cwd, _ := os.Getwd()
	logger.Debug().
		Str("go", runtime.Version()).
		Str("platform", runtime.GOOS+"/"+runtime.GOARCH).
		Str("cwd", cwd).
		Msg("environment")

	if cfg.GitHub.Actions {
		logger.Info().
			Str("repository", cfg.GitHub.Repository).
			Str("workflow", cfg.GitHub.Workflow).
			Msg("running in GitHub Actions")
	} else {
		logger.Debug().Msg("running locally")
	}

	logger.Info().
		Str("start", report.ToIsoDate(period.Start, loc)).
		Str("end", report.ToIsoDate(period.End, loc)).
		Str("tz", loc.String()).
		Msg("report period")
}

func generateReport(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	app, err := newApplication(logger)
	if err != nil {
		return err
	}
	app.DryRun = dryRun
	app.Generator.Strict = strict

	period, err := resolvePeriod(app.Now(), app.Location)
	if err != nil {
		return err
	}
	logEnvironment(logger, app.Config, period, app.Location)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	bar := newSpinner("Fetching activity")
	merged, err := app.Build(ctx, period)
	finishBar(bar)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	return app.Deliver(ctx, merged)
}

func newSpinner(description string) *progressbar.ProgressBar {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	_ = bar.RenderBlank()
	return bar
}

func finishBar(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}
