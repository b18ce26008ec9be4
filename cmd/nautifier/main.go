package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/virajlab/nautifier/cmd/nautifier/admincmd"
	"github.com/virajlab/nautifier/cmd/nautifier/gatewaycmd"
	"github.com/virajlab/nautifier/cmd/nautifier/processcmd"
	"github.com/virajlab/nautifier/cmd/nautifier/socketcmd"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:           "nautifier",
		Short:         "Slack channel bot gateway with exactly-once event dispatch",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.nautifier/config.yaml).")
	cobra.OnInitialize(initConfig)

	root.AddCommand(gatewaycmd.NewCommand())
	root.AddCommand(processcmd.NewCommand())
	root.AddCommand(socketcmd.NewCommand())
	root.AddCommand(admincmd.NewCommand())

	ctx, stop := signal.NotifyContext(root.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.nautifier")
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("NAUTIFIER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("gateway.listen", ":8080")
	viper.SetDefault("processor.listen", ":8081")
	viper.SetDefault("queue.mode", "cloudtasks")
	viper.SetDefault("queue.name", "slack-event-queue")
	viper.SetDefault("gcp.region", "us-central1")
	viper.SetDefault("gemini.request_timeout", "60s")
	viper.SetDefault("sheets.leaves_sheet", "Leaves")
	viper.SetDefault("sheets.articles_sheet", "Article Repository")
	viper.SetDefault("ledger.retention", "720h")
	viper.SetDefault("ledger.prune_interval", "6h")

	// Config file is optional; env and flags can carry everything.
	_ = viper.ReadInConfig()
}
