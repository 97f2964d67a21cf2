package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"weekplan/internal/app"
	appLog "weekplan/internal/log"
	"weekplan/internal/refresh"
	"weekplan/internal/web"
)

func newServeCmd(load configLoader) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the planner web UI and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"refresh", cfg.RefreshCron,
				"show_all_day", cfg.ShowAllDay,
				"ics_count", len(cfg.ICS),
				"basic_auth", cfg.BasicAuth != nil,
			)

			planner, err := app.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if len(planner.Subscriptions()) > 0 {
				if _, err := planner.Import(ctx, nil, app.TriggerRefresh); err != nil {
					// Keep serving; the next refresh or a manual import may succeed.
					appLog.Error("initial import failed", err)
				}
				if cfg.RefreshCron != "" {
					loc, _ := cfg.Location()
					r, err := refresh.New(cfg.RefreshCron, loc, planner)
					if err != nil {
						return err
					}
					r.Start()
					defer func() { <-r.Stop().Done() }()
				}
			}

			return web.Serve(ctx, cfg.Listen, web.NewServer(planner).Handler())
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	return cmd
}
