package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"almsync/internal/bootstrap"
	"almsync/internal/bootstrap/logging"
	"almsync/internal/errs"
	businfra "almsync/internal/infrastructure/bus"
	"almsync/internal/ports"
	syncuc "almsync/internal/usecase/sync"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger [entity-id]",
	Short: "Show the sync-status audit trail",
	Long:  "Lists recent sync attempts, or the full attempt history for one entity. The ledger is append-only and backs manual reconciliation after failures.",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *syncuc.Service, _ *businfra.Bus) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		limit, _ := cmd.Flags().GetInt("limit")

		var entries []ports.LedgerEntry
		var err error
		if args := cmd.Flags().Args(); len(args) == 1 {
			entries, err = svc.AttemptHistory(ctx, args[0])
		} else {
			entries, err = svc.RecentAttempts(ctx, limit)
		}
		if err != nil {
			logging.Error(ctx, "ledger query failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "query ledger")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tDIRECTION\tENTITY\tTRACKER KEY\tSTATUS\tRETRY\tERROR")
		for _, entry := range entries {
			trackerKey := ""
			if entry.TrackerKey != nil {
				trackerKey = *entry.TrackerKey
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				entry.CreatedAt,
				entry.Direction,
				entry.EntityID,
				trackerKey,
				entry.Status,
				entry.RetryCount,
				entry.ErrorMessage,
			)
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write ledger output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(ledgerCmd)

	ledgerCmd.Flags().Int("limit", 50, "Maximum number of recent entries")
}
