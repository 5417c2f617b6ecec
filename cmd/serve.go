package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Runs the HTTP API until SIGINT or SIGTERM.

  ` + AppName + ` serve
  LOGSAUDIT_SERVER__PORT=9000 ` + AppName + ` serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		logIdentity(ctx, a)

		nr, err := server.NewRelicApp(a.cfg.Observability)
		if err != nil {
			return fmt.Errorf("failed to start new relic: %w", err)
		}
		if nr != nil {
			a.logger.Info().Str("app_name", a.cfg.Observability.NewRelicAppName).Msg("new relic enabled")
		}

		srv := server.New(a.cfg, a.inspector, nr, a.logger)
		return srv.Start(ctx)
	},
}

// logIdentity records which account the server will query. Failure is not fatal.
func logIdentity(ctx context.Context, a *app) {
	id, err := a.factory.CallerIdentity(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("could not resolve caller identity")
		return
	}
	a.logger.Info().Str("account", id.Account).Str("arn", id.Arn).Str("region", a.factory.Region()).Msg("aws identity")
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
