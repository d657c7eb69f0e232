package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/wsmenu/internal/config"
	"github.com/marcus/wsmenu/internal/events"
	"github.com/marcus/wsmenu/internal/outbox"
	"github.com/marcus/wsmenu/internal/output"
	"github.com/marcus/wsmenu/internal/page"
	"github.com/marcus/wsmenu/internal/pubsub"
	"github.com/marcus/wsmenu/internal/tui/menuview"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor [workspace]",
	Short: "Live TUI menu for a workspace",
	Long: `Opens the workspace menu in a live TUI. Toggles are written optimistically
and pushed in the background; when a broker is configured, echoes arrive as
they are published.

Key bindings:
  j/k, ↑/↓       Move
  space/enter    Toggle feature, open More features
  esc            Back to the menu
  x              Dismiss a recorded rejection
  o              Go offline / online
  r              Refetch from the authority
  p              Push queued writes
  ?              Toggle help
  q              Quit`,
	GroupID: "core",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		id, err := s.workspaceArg(args)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval < 500*time.Millisecond {
			interval = 2 * time.Second
		}
		highlight := config.HighlightDuration(s.Config)
		offline := s.offline(cmd)

		var remote menuview.Remote
		if local, _ := cmd.Flags().GetBool("local"); !local {
			remote = s.client()
		}

		model := menuview.NewModel(s.DB, remote, id, page.New(highlight, offline), interval)
		model.HighlightTTL = highlight
		p := tea.NewProgram(model, tea.WithAltScreen())

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if remote != nil {
			retry, _ := cmd.Flags().GetDuration("retry")
			go outbox.Loop(ctx, s.DB, remote, id, retry, func(res outbox.Result, err error) {
				p.Send(menuview.FlushedMsg{Result: res, Err: err})
			})
		}

		amqpURL, _ := cmd.Flags().GetString("amqp-url")
		if amqpURL == "" {
			amqpURL = s.Config.AMQPURL
		}
		if amqpURL != "" {
			go listenEchoes(ctx, amqpURL, id, p)
		}

		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}
		return nil
	},
}

// listenEchoes forwards echoes for id to the program until ctx is done.
func listenEchoes(ctx context.Context, amqpURL, id string, p *tea.Program) {
	client, err := pubsub.Dial(ctx, pubsub.Config{URL: amqpURL}, slog.Default())
	if err != nil {
		p.Send(menuview.StatusMsg("broker: " + err.Error()))
		return
	}
	defer client.Close()

	err = client.Consume(ctx, pubsub.ConsumerSpec{
		Name:       "monitor-echoes",
		BindingKey: events.RoutingKey(id),
		Consume: pubsub.JSONHandler(func(_ context.Context, env events.Envelope[events.FeatureToggled]) error {
			if err := env.Data.Validate(); err != nil {
				return fmt.Errorf("%w: %v", pubsub.ErrPoison, err)
			}
			p.Send(menuview.EchoMsg{Echo: env.Data})
			return nil
		}),
	})
	if err != nil && ctx.Err() == nil {
		slog.Warn("echo listener stopped", "err", err)
	}
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Duration("interval", 2*time.Second, "Replica refresh interval")
	monitorCmd.Flags().Duration("retry", 5*time.Second, "Background push interval")
	monitorCmd.Flags().Bool("offline", false, "Start offline (default from config)")
	monitorCmd.Flags().Bool("local", false, "Never contact the authority")
	monitorCmd.Flags().String("amqp-url", "", "Broker URL for live echoes (default from config)")
}
