package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"weekplan/internal/app"
	"weekplan/internal/importer"
	"weekplan/internal/model"
	"weekplan/internal/render"
)

type importOutput struct {
	WeekStart time.Time          `json:"week_start"`
	Summary   importer.Summary   `json:"summary"`
	Week      model.WeekSnapshot `json:"week"`
}

func newImportCmd(load configLoader) *cobra.Command {
	var (
		weekOf   string
		asJSON   bool
		width    int
		allDay   bool
		noAllDay bool
	)

	cmd := &cobra.Command{
		Use:   "import FILE|URL...",
		Short: "Import calendars into a week and print the agenda",
		Long: `import reads one or more iCalendar files or http(s) subscriptions, expands
recurrences within the chosen week and prints the resulting agenda.
Without arguments the configured subscriptions are used.`,
		Example: `  weekplan import work.ics home.ics
  weekplan import --week 2024-06-03 --json https://example.com/cal.ics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if allDay {
				cfg.ShowAllDay = true
			}
			if noAllDay {
				cfg.ShowAllDay = false
			}

			var opts []app.Option
			if weekOf != "" {
				loc, err := cfg.Location()
				if err != nil {
					return err
				}
				day, err := time.ParseInLocation(time.DateOnly, weekOf, loc)
				if err != nil {
					return fmt.Errorf("--week: %w", err)
				}
				opts = append(opts, app.WithClock(func() time.Time { return day }))
			}

			planner, err := app.New(cfg, opts...)
			if err != nil {
				return err
			}
			if len(args) == 0 && len(planner.Subscriptions()) == 0 {
				return fmt.Errorf("nothing to import: pass files or configure ics subscriptions")
			}

			sum, err := planner.Import(cmd.Context(), args, app.TriggerCLI)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(importOutput{
					WeekStart: planner.Window().Start,
					Summary:   sum,
					Week:      planner.Snapshot(),
				})
			}

			fmt.Fprintln(out, render.Agenda(planner.Window(), planner.Snapshot(), width))
			fmt.Fprintf(out, "\n%d events kept, %d outside the week, %d clipped at midnight, %d duplicates\n",
				sum.Kept, sum.Dropped, sum.Clipped, sum.Duplicates)
			return nil
		},
	}

	cmd.Flags().StringVar(&weekOf, "week", "", "any date (YYYY-MM-DD) inside the week to show; default is the current week")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary and week snapshot as JSON")
	cmd.Flags().IntVar(&width, "width", render.DefaultColumnWidth, "agenda column width")
	cmd.Flags().BoolVar(&allDay, "all-day", false, "keep all-day events as whole-day blocks")
	cmd.Flags().BoolVar(&noAllDay, "no-all-day", false, "skip all-day events")
	cmd.MarkFlagsMutuallyExclusive("all-day", "no-all-day")
	return cmd
}
