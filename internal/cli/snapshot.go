package cli

import (
	"time"

	"github.com/spf13/cobra"

	"weekplan/internal/capture"
	appLog "weekplan/internal/log"
)

func newSnapshotCmd() *cobra.Command {
	var opts capture.Options

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save a PNG of a running planner's week page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := capture.CaptureWeekPNG(cmd.Context(), opts); err != nil {
				return err
			}
			appLog.Info("snapshot written", "path", opts.OutputPath, "url", opts.URL)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "http://127.0.0.1:8080/week", "week page to capture")
	cmd.Flags().StringVarP(&opts.OutputPath, "out", "o", "week.png", "output PNG path")
	cmd.Flags().IntVar(&opts.Width, "width", capture.DefaultWidth, "viewport width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", capture.DefaultHeight, "viewport height in pixels")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", capture.DefaultTimeoutSec*time.Second, "overall capture timeout")
	return cmd
}
