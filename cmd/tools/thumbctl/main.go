// Package main implements thumbctl, the operator CLI for the thumbnail
// pipeline. It runs pipeline operations from a workstation, outside Lambda.
//
// Usage:
//
//	thumbctl redrive                       # move the DLQ back to the images queue
//	thumbctl generate uploads photos/a.jpg # build derivatives for one object
//	thumbctl paths photos/a.jpg            # print derivative keys for a source key
//
// redrive and generate read the same environment as the Lambda functions
// (or a .env file). Outside APP_ENV=local, *_SSM_PARAM variables are
// resolved through SSM, or through other environment variables with --no-ssm.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"thumbnails/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "thumbctl",
	Short: "Operate the thumbnail pipeline",
	Long:  "thumbctl redrives the images dead-letter queue and generates or inspects thumbnails outside Lambda.",

	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("no-ssm", false, "resolve *_SSM_PARAM values from environment variables instead of SSM")
	rootCmd.AddCommand(redriveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(pathsCmd)
}

// secretProvider picks how *_SSM_PARAM pointers are resolved. With --no-ssm
// each pointer names another environment variable, which lets an operator
// reuse a deployed function's environment without Parameter Store access.
func secretProvider(cmd *cobra.Command) config.SecretProvider {
	if os.Getenv("APP_ENV") == "local" {
		return nil
	}
	if noSSM, _ := cmd.Flags().GetBool("no-ssm"); noSSM {
		return config.NewEnvVarProvider()
	}
	return config.NewSSMProvider(os.Getenv("AWS_REGION"))
}

func loadAWS(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
