package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"almsync/internal/bootstrap"
	"almsync/internal/bootstrap/logging"
	"almsync/internal/errs"
	businfra "almsync/internal/infrastructure/bus"
	syncuc "almsync/internal/usecase/sync"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run the test-failure event consumer",
	Long:  "Subscribes to the test-failure subject and creates linked defect issues in the tracker. Redelivery and backoff stay with the broker; the handler only acks or naks.",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *syncuc.Service, eventBus *businfra.Bus) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		sub, err := eventBus.Subscribe(ctx, app.Config.Bus.FailureSubject, svc.HandleTestFailure)
		if err != nil {
			logging.Error(ctx, "subscribe failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "subscribe test failures")
		}
		defer func() {
			if err := sub.Drain(); err != nil {
				logging.Warn(ctx, "drain subscription failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		logging.Info(ctx, "consumer running", slog.String("subject", app.Config.Bus.FailureSubject))
		<-ctx.Done()
		logging.Info(ctx, "consumer stopping")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}
