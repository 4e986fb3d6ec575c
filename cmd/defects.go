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

var defectsCmd = &cobra.Command{
	Use:   "defects [test-result-id ...]",
	Short: "Create tracker defects for failed tests",
	Long:  "Creates a linked defect issue for each named test result, or for every failed result without one when no arguments are given. Already-linked results are skipped, so reruns are safe.",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *syncuc.Service, _ *businfra.Bus) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		out, err := svc.CreateMissingDefects(ctx, cmd.Flags().Args())
		if err != nil {
			logging.Error(ctx, "defect batch failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create missing defects")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "defects done: %d created, %d failed\n", len(out.Succeeded), len(out.Failed)); err != nil {
			return errs.Wrap(err, "write defects output")
		}
		for _, id := range out.Failed {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "  failed: %s\n", id); err != nil {
				return errs.Wrap(err, "write defects output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(defectsCmd)
}
