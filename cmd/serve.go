package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcus/wsmenu/internal/api"
	"github.com/marcus/wsmenu/internal/fixtures"
	"github.com/marcus/wsmenu/internal/pubsub"
	"github.com/marcus/wsmenu/internal/serverdb"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local workspace authority",
	Long: `Serves workspace records and rules on feature writes over HTTP. Each ruling
is answered with an echo and, when an AMQP URL is set, published on the
workspace topic exchange.

Latency and random failures can be injected to exercise offline behavior.
Flags override the WSMENU_SERVE_* environment variables.`,
	GroupID: "server",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := api.LoadConfig()
		flags := cmd.Flags()
		if flags.Changed("addr") {
			cfg.ListenAddr, _ = flags.GetString("addr")
		}
		if flags.Changed("db") {
			cfg.DBPath, _ = flags.GetString("db")
		}
		if flags.Changed("seed-file") {
			cfg.SeedFile, _ = flags.GetString("seed-file")
		}
		if flags.Changed("latency") {
			cfg.Latency, _ = flags.GetDuration("latency")
		}
		if flags.Changed("fail-rate") {
			cfg.FailRate, _ = flags.GetFloat64("fail-rate")
		}
		if flags.Changed("amqp-url") {
			cfg.AMQPURL, _ = flags.GetString("amqp-url")
		}
		if cfg.FailRate < 0 || cfg.FailRate > 1 {
			return fmt.Errorf("--fail-rate must be between 0 and 1")
		}

		store, err := serverdb.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open authority db: %w", err)
		}
		defer store.Close()

		if cfg.SeedFile != "" {
			records, err := fixtures.Load(cfg.SeedFile)
			if err != nil {
				return err
			}
			for _, ws := range records {
				if err := store.UpsertWorkspace(ws); err != nil {
					return fmt.Errorf("seed %s: %w", ws.ID, err)
				}
			}
			slog.Info("seeded workspaces", "count", len(records), "file", cfg.SeedFile)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var publisher api.Publisher
		if cfg.AMQPURL != "" {
			dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			client, err := pubsub.Dial(dialCtx, pubsub.Config{URL: cfg.AMQPURL, Producer: "wsmenu-authority"}, slog.Default())
			cancel()
			if err != nil {
				return err
			}
			defer client.Close()
			publisher = client
		}

		srv := api.NewServer(cfg, store, publisher)
		addr, err := srv.Start()
		if err != nil {
			return err
		}
		slog.Info("server started", "addr", addr.String(), "latency", cfg.Latency, "fail_rate", cfg.FailRate)
		fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", addr)

		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "err", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8787", "Listen address")
	serveCmd.Flags().String("db", "./data/authority.db", "Authority database path (:memory: for a throwaway store)")
	serveCmd.Flags().String("seed-file", "", "YAML or JSON fixture to load at startup")
	serveCmd.Flags().Duration("latency", 0, "Injected latency per request")
	serveCmd.Flags().Float64("fail-rate", 0, "Fraction of requests answered with 503")
	serveCmd.Flags().String("amqp-url", "", "Publish echoes to this AMQP broker")
}
