package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Afrawles/weeklyreport/internal/browser"
	"github.com/Afrawles/weeklyreport/internal/calendar"
	"github.com/Afrawles/weeklyreport/internal/oauth"
)

var (
	callbackAddr string
	authTimeout  time.Duration
	noBrowser    bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Obtain credentials for activity sources",
}

var authGoogleCmd = &cobra.Command{
	Use:   "google",
	Short: "Authorize Google Calendar access and store a refresh token",
	Long: `Starts a local callback server, opens the Google consent page and waits for
the browser to be redirected back. The refresh token is stored in the token
directory, where the calendar source picks it up on the next run.`,
	Args: cobra.NoArgs,
	RunE: authorizeGoogle,
}

func init() {
	authGoogleCmd.Flags().StringVar(&callbackAddr, "listen", oauth.DefaultCallbackAddr, "Address of the local callback server")
	authGoogleCmd.Flags().DurationVar(&authTimeout, "timeout", 5*time.Minute, "How long to wait for the browser")
	authGoogleCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the consent URL instead of opening it")
	authCmd.AddCommand(authGoogleCmd)
}

func authorizeGoogle(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var missing []string
	if cfg.Calendar.ClientID == "" {
		missing = append(missing, "GOOGLE_CALENDAR_CLIENT_ID")
	}
	if cfg.Calendar.ClientSecret == "" {
		missing = append(missing, "GOOGLE_CALENDAR_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return errors.New("missing environment variables: " + strings.Join(missing, ", "))
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	out := cmd.OutOrStdout()
	flow := oauth.NewFlow(oauth.GoogleConfig(cfg.Calendar.ClientID, cfg.Calendar.ClientSecret))
	server := oauth.NewCallbackServer(callbackAddr)

	token, err := flow.Authorize(ctx, server, func(authURL string) {
		logger.Info().Str("callback", server.URL()).Msg("waiting for authorization")
		if !noBrowser {
			err := browser.Open(authURL)
			if err == nil {
				fmt.Fprintln(out, "Opened the consent page in your browser.")
				return
			}
			logger.Warn().Err(err).Msg("could not open browser")
		}
		fmt.Fprintf(out, "Open this URL in your browser and grant access:\n\n%s\n\n", authURL)
	})
	if errors.Is(err, oauth.ErrNoRefreshToken) {
		return fmt.Errorf("%w; revoke the app at https://myaccount.google.com/permissions and try again", err)
	}
	if err != nil {
		return err
	}

	storage := oauth.NewTokenStorage(cfg.Calendar.TokenDir)
	if err := storage.Save(calendar.TokenProvider, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	logger.Info().Str("dir", cfg.Calendar.TokenDir).Msg("refresh token saved")

	fmt.Fprintf(out, "To use this token from the environment, set:\nGOOGLE_CALENDAR_REFRESH_TOKEN=%s\n", token.RefreshToken)
	return nil
}
