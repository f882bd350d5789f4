package main

import (
	"encoding/json"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"thumbnails/internal/config"
	"thumbnails/internal/logging"
	"thumbnails/internal/queue"
	"thumbnails/internal/redrive"
	"thumbnails/internal/telemetry"
	"thumbnails/internal/types"
)

var redriveCmd = &cobra.Command{
	Use:   "redrive",
	Short: "Move every message in the images DLQ back to the images queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRedriveConfig(secretProvider(cmd))
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("max-drains") {
			cfg.Queues.MaxDrains, _ = cmd.Flags().GetInt("max-drains")
		}
		quiet, _ := cmd.Flags().GetBool("quiet")

		awsCfg, err := loadAWS(cmd.Context(), cfg.AWS.Region)
		if err != nil {
			return err
		}

		var opts []redrive.Option
		if !quiet {
			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetDescription("redriving"),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionSpinnerType(14),
			)
			defer bar.Finish()
			opts = append(opts, redrive.WithProgress(func(types.QueueMessage) {
				_ = bar.Add(1)
			}))
		}

		redriver := redrive.New(
			queue.NewClient(queue.NewSQSClient(awsCfg, cfg.AWS.EndpointURL)),
			redrive.ConfigFrom(cfg.Queues),
			logging.New(cfg.LogLevel, "local"),
			telemetry.NopRecorder{},
			opts...,
		)

		result, runErr := redriver.Run(cmd.Context())
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return runErr
	},
}

func init() {
	redriveCmd.Flags().Int("max-drains", 0, "override REDRIVE_MAX_DRAINS (0 drains until empty)")
	redriveCmd.Flags().BoolP("quiet", "q", false, "hide the progress spinner")
}
