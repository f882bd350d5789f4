package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"thumbnails/internal/config"
	"thumbnails/internal/derivative"
)

var pathsCmd = &cobra.Command{
	Use:   "paths [key]",
	Short: "Print the destination keys of a source key's derivatives",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")
		template, _ := cmd.Flags().GetString("template")
		rawSizes, _ := cmd.Flags().GetString("sizes")

		var sizes config.SizeList
		if err := sizes.Decode(rawSizes); err != nil {
			return err
		}
		if len(sizes) == 0 {
			return fmt.Errorf("no sizes given")
		}

		for _, p := range derivative.Paths(folder, template, args[0], sizes.Specs()) {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	pathsCmd.Flags().String("folder", "thumbnails", "destination folder root (THUMBNAILS_FOLDER)")
	pathsCmd.Flags().String("template", "thumbnails_"+derivative.FilenamePlaceholder, "per-source subfolder template (THUMBNAILS_FOLDER_TEMPLATE)")
	pathsCmd.Flags().String("sizes", "75x75,125x125,1280x720", "comma-separated WxH sizes (THUMBNAIL_SIZES)")
}
