package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/client"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/config"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/inspector"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/loggroup"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/logging"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/query"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/region"
)

const AppName = "aws-logs-auditor"

var (
	profile   string
	awsRegion string
	envFiles  []string
)

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   AppName,
	Short: "Query CloudWatch Logs across every enabled AWS region",
	Long: `Lists log groups in every enabled region of the account, runs one
CloudWatch Logs Insights query per group and merges the rows newest first.

Run "serve" for the HTTP API or "query" for a one-off search.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&profile, "profile", "P", "", "AWS shared config profile (or set AWS_PROFILE)")
	RootCmd.PersistentFlags().StringVarP(&awsRegion, "region", "R", "", "region used for account-level calls (default from config)")
	RootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading LOGSAUDIT_* variables (default .env)")
}

// app is the wired object graph shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	factory   *client.Factory
	regions   *region.Enumerator
	inspector *inspector.Inspector
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}
	if profile != "" {
		cfg.AWS.Profile = profile
	}
	if awsRegion != "" {
		cfg.AWS.DefaultRegion = awsRegion
	}
	logger := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	factory, err := client.NewFactory(ctx, client.AuthOptions{
		Region:          cfg.AWS.DefaultRegion,
		Profile:         cfg.AWS.Profile,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		SessionToken:    cfg.AWS.SessionToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	regions := region.NewEnumerator(factory.EC2(), logger)
	lister := loggroup.NewLister(factory, logger)
	exec := query.NewExecutor(factory, query.Options{
		PollInterval: cfg.Query.PollInterval,
		MaxWait:      cfg.Query.MaxWait,
	}, logger)
	insp := inspector.New(regions, lister, exec, inspector.Options{
		Workers:       cfg.Query.Workers,
		SampleRegions: cfg.Meta.SampleRegions,
	}, logger)

	return &app{cfg: cfg, logger: logger, factory: factory, regions: regions, inspector: insp}, nil
}
