package main

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cronSpec string
	runNow   bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Generate and deliver the report on a cron schedule",
	Long: `Runs in the foreground and generates the report for the preceding week
every time the cron expression fires (default: Mondays at 08:00 in TZ).`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&cronSpec, "cron", "", "Cron expression (overrides SCHEDULE)")
	scheduleCmd.Flags().BoolVar(&runNow, "run-now", false, "Also run once immediately")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	app, err := newApplication(logger)
	if err != nil {
		return err
	}

	spec := cronSpec
	if spec == "" {
		spec = app.Config.Schedule
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	job := func() {
		if err := app.Run(ctx, app.DefaultPeriod()); err != nil {
			logger.Error().Err(err).Msg("scheduled report failed")
		}
	}

	c := cron.New(
		cron.WithLocation(app.Location),
		cron.WithLogger(cronLogger{logger: logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: logger})),
	)
	id, err := c.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	c.Start()
	logger.Info().Str("schedule", spec).Time("next", c.Entry(id).Schedule.Next(app.Now().In(app.Location))).Msg("scheduler started")

	if runNow {
		go c.Entry(id).WrappedJob.Run()
	}

	<-ctx.Done()
	logger.Info().Msg("stopping scheduler")
	<-c.Stop().Done()
	return nil
}
