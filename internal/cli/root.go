// Package cli wires the weekplan commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"weekplan/internal/config"
	appLog "weekplan/internal/log"
)

// NewRootCmd builds the weekplan command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "weekplan",
		Short: "Weekly time-grid planner",
		Long: `weekplan keeps a Monday-first week of to-dos and time blocks.

Blocks are placed on a 15 minute grid, never overlap each other and can be
complemented by events imported from iCalendar files or subscriptions.`,
		Example: `  weekplan serve --listen 127.0.0.1:8080
  weekplan import ~/calendar.ics --week 2024-06-03
  weekplan snapshot --url http://127.0.0.1:8080/week --out week.png`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "",
		fmt.Sprintf("config file (default $%s or %s)", config.EnvPath, config.DefaultPath))

	load := func() (*config.Config, error) {
		path := config.ResolvePath(configPath)
		cfg, err := config.Load(path)
		if err != nil {
			appLog.Error("failed to load config", err, "config_path", path)
			return nil, err
		}
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
		return cfg, nil
	}

	cmd.AddCommand(
		newServeCmd(load),
		newImportCmd(load),
		newSnapshotCmd(),
	)
	return cmd
}

type configLoader func() (*config.Config, error)
