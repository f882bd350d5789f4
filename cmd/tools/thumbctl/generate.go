package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"thumbnails/internal/config"
	"thumbnails/internal/derivative"
	"thumbnails/internal/storage"
	"thumbnails/internal/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate [bucket] [key]",
	Short: "Generate and publish the derivatives of one uploaded object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bucket, key := args[0], args[1]

		cfg, err := config.LoadWorkerConfig(secretProvider(cmd))
		if err != nil {
			return err
		}
		awsCfg, err := loadAWS(cmd.Context(), cfg.AWS.Region)
		if err != nil {
			return err
		}

		gen := derivative.NewGenerator(storage.New(storage.NewClient(awsCfg, cfg.AWS.EndpointURL)), derivative.Config{
			Bucket:         cfg.Derivatives.Bucket,
			Folder:         cfg.Derivatives.Folder,
			FolderTemplate: cfg.Derivatives.FolderTemplate,
			Sizes:          cfg.Derivatives.Sizes.Specs(),
		})

		keys, err := gen.Generate(cmd.Context(), types.WorkItem{SourceBucket: bucket, SourceKey: key, CorrelationID: "thumbctl"})
		printKeys(cmd.OutOrStdout(), cfg.Derivatives.Bucket, keys)
		if err != nil {
			return fmt.Errorf("%d of %d derivatives published: %w", len(keys), len(cfg.Derivatives.Sizes), err)
		}
		return nil
	},
}

// printKeys writes one s3:// URL per published derivative.
func printKeys(w io.Writer, bucket string, keys []string) {
	for _, k := range keys {
		fmt.Fprintf(w, "s3://%s/%s\n", bucket, k)
	}
}
