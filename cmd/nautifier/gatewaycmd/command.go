// Package gatewaycmd runs the webhook edge server.
package gatewaycmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/virajlab/nautifier/cmd/nautifier/cmdutil"
	"github.com/virajlab/nautifier/internal/configutil"
	"github.com/virajlab/nautifier/internal/gateway"
	"github.com/virajlab/nautifier/internal/healthcheck"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the Slack webhook receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			processorURL, err := cmdutil.ProcessorURL(cmd)
			if err != nil {
				return err
			}
			lg, err := cmdutil.OpenLedger(cmd.Context())
			if err != nil {
				return err
			}
			queue, closeQueue, err := cmdutil.BuildQueue(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeQueue()

			listen := configutil.FlagOrViperString(cmd, "listen", "gateway.listen")
			srv, err := gateway.StartServer(cmd.Context(), logger, gateway.ServerOptions{
				Listen: listen,
				Routes: gateway.RoutesOptions{
					Ledger:        lg,
					Queue:         queue,
					ProcessorURL:  processorURL,
					SigningSecret: configutil.FlagOrViperString(cmd, "slack-signing-secret", "slack.signing_secret"),
					Seen:          gateway.NewSeenCache(4096),
					Logger:        logger,
				},
			})
			if err != nil {
				return err
			}
			defer shutdown(srv.Shutdown)

			if healthListen := healthcheck.NormalizeListen(configutil.FlagOrViperString(cmd, "health-listen", "health.listen")); healthListen != "" {
				healthServer, err := healthcheck.StartServer(cmd.Context(), logger, healthListen, "gateway")
				if err != nil {
					logger.Warn("gateway_health_server_start_error", "addr", healthListen, "error", err.Error())
				} else {
					defer shutdown(healthServer.Shutdown)
				}
			}

			<-cmd.Context().Done()
			logger.Info("gateway_stop", "reason", "context_canceled")
			return nil
		},
	}

	cmd.Flags().String("listen", ":8080", "Gateway listen address.")
	cmd.Flags().String("processor-url", "", "Processor endpoint the queue delivers tasks to (required).")
	cmd.Flags().String("slack-signing-secret", "", "Slack signing secret; empty disables request verification.")
	cmd.Flags().String("queue-mode", "cloudtasks", "Dispatch queue: cloudtasks|http.")
	cmd.Flags().String("queue-name", "slack-event-queue", "Cloud Tasks queue name.")
	cmd.Flags().String("gcp-project-id", "", "Google Cloud project id for Cloud Tasks.")
	cmd.Flags().String("gcp-region", "us-central1", "Google Cloud region for Cloud Tasks.")
	cmd.Flags().String("health-listen", "", "Health endpoint listen address (empty disables).")

	return cmd
}

func shutdown(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	_ = fn(ctx)
	cancel()
}
