// Package processcmd runs the queued-event processor server.
package processcmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/virajlab/nautifier/cmd/nautifier/cmdutil"
	"github.com/virajlab/nautifier/handlers"
	"github.com/virajlab/nautifier/internal/configutil"
	"github.com/virajlab/nautifier/internal/healthcheck"
	"github.com/virajlab/nautifier/internal/ledger"
	"github.com/virajlab/nautifier/internal/processor"
	"github.com/virajlab/nautifier/internal/sheets"
	"github.com/virajlab/nautifier/tools"
	"github.com/virajlab/nautifier/tools/builtin"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the event processor that executes queued Slack events",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			routesPath := strings.TrimSpace(configutil.FlagOrViperString(cmd, "routes", "routes.path"))
			if routesPath == "" {
				return fmt.Errorf("missing routes.path (set via --routes or NAUTIFIER_ROUTES_PATH)")
			}
			routeConfig, err := handlers.LoadRoutes(routesPath)
			if err != nil {
				return err
			}

			lg, err := cmdutil.OpenLedger(cmd.Context())
			if err != nil {
				return err
			}
			slackClient, err := cmdutil.SlackClientFromViper(cmd)
			if err != nil {
				return err
			}
			llmClient, err := cmdutil.GeminiClientFromViper()
			if err != nil {
				return err
			}

			sheetsService, err := sheetsapi.NewService(cmd.Context(), option.WithScopes(sheetsapi.SpreadsheetsScope))
			if err != nil {
				return fmt.Errorf("create sheets service: %w", err)
			}
			leavesStore, err := sheets.NewStore(sheets.StoreOptions{
				Service:       sheetsService,
				SpreadsheetID: viper.GetString("sheets.leaves_spreadsheet_id"),
			})
			if err != nil {
				return fmt.Errorf("leaves store: %w", err)
			}
			articleStore, err := sheets.NewStore(sheets.StoreOptions{
				Service:       sheetsService,
				SpreadsheetID: viper.GetString("sheets.articles_spreadsheet_id"),
			})
			if err != nil {
				return fmt.Errorf("articles store: %w", err)
			}

			registry := tools.NewRegistry()
			registry.Register(builtin.NewSaveArticleTool(articleStore, viper.GetString("sheets.articles_sheet")))

			leavesHandler, err := handlers.NewLeavesHandler(handlers.LeavesOptions{
				LLM:       llmClient,
				Slack:     slackClient,
				Store:     leavesStore,
				SheetName: viper.GetString("sheets.leaves_sheet"),
				Model:     viper.GetString("models.leaves"),
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			articlesHandler, err := handlers.NewArticlesHandler(handlers.ArticlesOptions{
				LLM:      llmClient,
				Slack:    slackClient,
				Registry: registry,
				Model:    viper.GetString("models.articles"),
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			tagsHandler, err := handlers.NewTagsHandler(handlers.TagsOptions{
				LLM:    llmClient,
				Slack:  slackClient,
				Model:  viper.GetString("models.tags"),
				Logger: logger,
			})
			if err != nil {
				return err
			}
			chatterHandler, err := handlers.NewChatterHandler(handlers.ChatterOptions{
				LLM:    llmClient,
				Slack:  slackClient,
				Model:  viper.GetString("models.chatter"),
				Logger: logger,
			})
			if err != nil {
				return err
			}

			router, err := handlers.NewRouter(routeConfig, map[string]handlers.Handler{
				leavesHandler.Name():   leavesHandler,
				articlesHandler.Name(): articlesHandler,
				tagsHandler.Name():     tagsHandler,
				chatterHandler.Name():  chatterHandler,
			})
			if err != nil {
				return err
			}

			proc, err := processor.New(processor.Options{
				Ledger: lg,
				Router: router,
				Logger: logger,
			})
			if err != nil {
				return err
			}

			listen := configutil.FlagOrViperString(cmd, "listen", "processor.listen")
			srv, err := processor.StartServer(cmd.Context(), logger, processor.ServerOptions{
				Listen: listen,
				Routes: processor.RoutesOptions{Processor: proc, Logger: logger},
			})
			if err != nil {
				return err
			}
			defer shutdown(srv.Shutdown)

			if healthListen := healthcheck.NormalizeListen(configutil.FlagOrViperString(cmd, "health-listen", "health.listen")); healthListen != "" {
				healthServer, err := healthcheck.StartServer(cmd.Context(), logger, healthListen, "process")
				if err != nil {
					logger.Warn("process_health_server_start_error", "addr", healthListen, "error", err.Error())
				} else {
					defer shutdown(healthServer.Shutdown)
				}
			}

			if interval := viper.GetDuration("ledger.prune_interval"); interval > 0 {
				go pruneLoop(cmd.Context(), logger, lg, interval, viper.GetDuration("ledger.retention"))
			}

			logger.Info("process_start", "listen", listen, "routes", routesPath, "channels", len(router.Channels()))
			<-cmd.Context().Done()
			logger.Info("process_stop", "reason", "context_canceled")
			return nil
		},
	}

	cmd.Flags().String("listen", ":8081", "Processor listen address.")
	cmd.Flags().String("routes", "", "Path to the YAML channel routing table (required).")
	cmd.Flags().String("slack-bot-token", "", "Slack bot token (xoxb-...).")
	cmd.Flags().String("slack-app-token", "", "Slack app-level token (xapp-...), unused by this command.")
	cmd.Flags().String("health-listen", "", "Health endpoint listen address (empty disables).")

	return cmd
}

func pruneLoop(ctx context.Context, logger *slog.Logger, lg *ledger.GormLedger, interval, retention time.Duration) {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := lg.PruneCompleted(ctx, retention)
			if err != nil {
				logger.Warn("ledger_prune_error", "error", err.Error())
				continue
			}
			if pruned > 0 {
				logger.Info("ledger_pruned", "count", pruned, "older_than", retention.String())
			}
		}
	}
}

func shutdown(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	_ = fn(ctx)
	cancel()
}
