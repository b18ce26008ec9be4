// Package cmdutil holds the wiring shared by the nautifier subcommands.
package cmdutil

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/virajlab/nautifier/db"
	"github.com/virajlab/nautifier/internal/configutil"
	"github.com/virajlab/nautifier/internal/dispatch"
	"github.com/virajlab/nautifier/internal/ledger"
	"github.com/virajlab/nautifier/internal/slackapi"
	"github.com/virajlab/nautifier/llm"
	"github.com/virajlab/nautifier/providers/gemini"
)

func LoggerFromViper() (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(viper.GetString("log.level"))) {
	case "", "info":
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log.level: %s", viper.GetString("log.level"))
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(viper.GetString("log.format")), "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

// OpenLedger opens the sqlite-backed ledger using db.dsn when set.
func OpenLedger(ctx context.Context) (*ledger.GormLedger, error) {
	cfg := db.DefaultConfig()
	cfg.DSN = viper.GetString("db.dsn")

	gdb, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if cfg.AutoMigrate {
		if err := db.AutoMigrate(gdb); err != nil {
			return nil, fmt.Errorf("migrate ledger db: %w", err)
		}
	}
	return ledger.NewGormLedger(ledger.GormLedgerOptions{DB: gdb})
}

// ProcessorURL resolves the queue's delivery target. A missing value is a
// fatal configuration error for any command that enqueues.
func ProcessorURL(cmd *cobra.Command) (string, error) {
	u := strings.TrimSpace(configutil.FlagOrViperString(cmd, "processor-url", "processor.url"))
	if u == "" {
		return "", fmt.Errorf("missing processor.url (set via --processor-url or NAUTIFIER_PROCESSOR_URL)")
	}
	return u, nil
}

// BuildQueue constructs the dispatch queue. queue.mode selects cloudtasks
// (production) or http (direct delivery for local runs). The returned
// closer releases the Cloud Tasks client when one was created.
func BuildQueue(ctx context.Context, cmd *cobra.Command) (dispatch.Queue, func(), error) {
	mode := strings.ToLower(strings.TrimSpace(configutil.FlagOrViperString(cmd, "queue-mode", "queue.mode")))
	if mode == "" {
		mode = "cloudtasks"
	}
	switch mode {
	case "cloudtasks":
		client, err := cloudtasks.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create cloud tasks client: %w", err)
		}
		queue, err := dispatch.NewCloudTasksQueue(dispatch.CloudTasksQueueOptions{
			Client:    client,
			ProjectID: configutil.FlagOrViperString(cmd, "gcp-project-id", "gcp.project_id"),
			Location:  configutil.FlagOrViperString(cmd, "gcp-region", "gcp.region"),
			QueueName: configutil.FlagOrViperString(cmd, "queue-name", "queue.name"),
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return queue, func() { _ = client.Close() }, nil
	case "http":
		return dispatch.NewHTTPQueue(&http.Client{Timeout: 30 * time.Second}), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue.mode: %s", mode)
	}
}

func SlackClientFromViper(cmd *cobra.Command) (*slackapi.Client, error) {
	botToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-bot-token", "slack.bot_token"))
	if botToken == "" {
		return nil, fmt.Errorf("missing slack.bot_token (set via --slack-bot-token or NAUTIFIER_SLACK_BOT_TOKEN)")
	}
	appToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-app-token", "slack.app_token"))
	httpClient := &http.Client{Timeout: 30 * time.Second}
	return slackapi.NewClient(httpClient, "https://slack.com/api", botToken, appToken), nil
}

func GeminiClientFromViper() (llm.Client, error) {
	apiKey := strings.TrimSpace(viper.GetString("gemini.api_key"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing gemini.api_key (set via NAUTIFIER_GEMINI_API_KEY)")
	}
	return gemini.New(gemini.Options{
		APIKey:  apiKey,
		BaseURL: viper.GetString("gemini.base_url"),
		Timeout: viper.GetDuration("gemini.request_timeout"),
	})
}
