// Package admincmd holds maintenance commands for the event ledger.
package admincmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/virajlab/nautifier/cmd/nautifier/cmdutil"
	"github.com/virajlab/nautifier/internal/configutil"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative maintenance commands",
	}
	cmd.AddCommand(newPruneCmd())
	return cmd
}

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete completed ledger entries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			retention := configutil.FlagOrViperDuration(cmd, "older-than", "ledger.retention")
			if retention <= 0 {
				return fmt.Errorf("retention must be positive")
			}

			lg, err := cmdutil.OpenLedger(cmd.Context())
			if err != nil {
				return err
			}
			pruned, err := lg.PruneCompleted(cmd.Context(), retention)
			if err != nil {
				return err
			}
			logger.Info("ledger_pruned", "older_than", retention.String(), "deleted", pruned)
			return nil
		},
	}
	cmd.Flags().Duration("older-than", 720*time.Hour, "Delete completed entries older than this.")
	return cmd
}
