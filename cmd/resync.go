package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"almsync/internal/bootstrap"
	"almsync/internal/bootstrap/logging"
	"almsync/internal/errs"
	businfra "almsync/internal/infrastructure/bus"
	syncuc "almsync/internal/usecase/sync"
)

var resyncCmd = &cobra.Command{
	Use:   "resync [issue-key ...]",
	Short: "Pull tracker issues into the warehouse",
	Long:  "Fetches the named issues (or, with no arguments, every issue matching the configured filter) and applies the regular idempotent upsert per issue. Individual failures are reported, not fatal.",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *syncuc.Service, _ *businfra.Bus) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		out, err := svc.Resync(ctx, cmd.Flags().Args())
		if err != nil {
			logging.Error(ctx, "resync failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "resync issues")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "resync done: %d succeeded, %d failed\n", len(out.Succeeded), len(out.Failed)); err != nil {
			return errs.Wrap(err, "write resync output")
		}
		for _, key := range out.Failed {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "  failed: %s\n", key); err != nil {
				return errs.Wrap(err, "write resync output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(resyncCmd)
}
