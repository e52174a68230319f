package main

import (
	"github.com/spf13/cobra"

	"github.com/Afrawles/weeklyreport/internal/server"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a live preview of the report over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides LISTEN_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	app, err := newApplication(logger)
	if err != nil {
		return err
	}

	addr := listenAddr
	if addr == "" {
		addr = app.Config.Listen
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	api := server.NewWebAPI(logger, app, server.Config{
		Addr:     addr,
		Location: app.Location,
		Template: app.Template,
		Now:      app.Now,
	})
	return api.Start(ctx)
}
