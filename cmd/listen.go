package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcus/wsmenu/internal/db"
	"github.com/marcus/wsmenu/internal/events"
	"github.com/marcus/wsmenu/internal/output"
	"github.com/marcus/wsmenu/internal/pubsub"
	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen [workspace]",
	Short: "Apply feature echoes from the broker to the replica",
	Long: `Consumes feature echoes from the AMQP topic exchange and applies them to
the local replica. Without a workspace every workspace's echoes are applied.
Runs until interrupted.`,
	GroupID: "sync",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		amqpURL, _ := cmd.Flags().GetString("amqp-url")
		if amqpURL == "" {
			amqpURL = s.Config.AMQPURL
		}
		if amqpURL == "" {
			err := fmt.Errorf("no broker configured (set amqp_url or pass --amqp-url)")
			output.Error("%v", err)
			return err
		}

		binding := events.RoutingKey("*")
		if len(args) > 0 {
			binding = events.RoutingKey(args[0])
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		client, err := pubsub.Dial(dialCtx, pubsub.Config{URL: amqpURL}, slog.Default())
		cancel()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer client.Close()

		queue, _ := cmd.Flags().GetString("queue")
		fmt.Printf("Listening on %s\n", binding)
		err = client.Consume(ctx, pubsub.ConsumerSpec{
			Name:       "replica-echoes",
			Queue:      queue,
			BindingKey: binding,
			Consume:    pubsub.JSONHandler(echoApplier(s.DB)),
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// echoApplier applies one echo. Invalid echoes and echoes for workspaces
// missing from the replica are dropped.
func echoApplier(store *db.DB) func(context.Context, events.Envelope[events.FeatureToggled]) error {
	return func(_ context.Context, env events.Envelope[events.FeatureToggled]) error {
		echo := env.Data
		if err := echo.Validate(); err != nil {
			return fmt.Errorf("%w: %v", pubsub.ErrPoison, err)
		}
		outcome, err := store.ApplyEcho(echo)
		if errors.Is(err, db.ErrNotFound) {
			slog.Debug("echo for unknown workspace", "workspace", echo.WorkspaceID)
			return nil
		}
		if err != nil {
			return err
		}
		slog.Info("echo applied", "workspace", echo.WorkspaceID, "feature", echo.Feature,
			"status", echo.Status, "version", echo.Version, "outcome", outcome, "event_id", env.Meta.ID)
		return nil
	}
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().String("amqp-url", "", "Broker URL (default from config)")
	listenCmd.Flags().String("queue", "", "Durable queue name (default: private auto-delete queue)")
}
