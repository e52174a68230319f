package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Afrawles/weeklyreport/internal/config"
)

var overwrite bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with the default settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "weeklyreport.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path, overwrite); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration without contacting any service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK (calendar: %s, GitHub tokens: %d, email: %t)\n",
			cfg.Calendar.Provider, len(cfg.GitHub.Tokens), cfg.Email.Enabled)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&overwrite, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configCheckCmd)
}
