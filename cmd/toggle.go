package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/outbox"
	"github.com/marcus/wsmenu/internal/output"
	"github.com/spf13/cobra"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle [workspace] [feature]",
	Short: "Turn a workspace feature on or off",
	Long: `Writes the feature optimistically to the replica and queues it for the
authority. Without --on or --off the current value is flipped. Without a
feature argument an interactive picker is shown.

Online, the write is pushed immediately unless --no-push is given.`,
	GroupID: "core",
	Args:    cobra.MaximumNArgs(2),
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
		ws, err := s.DB.GetWorkspace(id)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		var f features.Feature
		if len(args) == 2 {
			if f, err = parseFeatureArg(args[1]); err != nil {
				output.Error("%v", err)
				return err
			}
		} else {
			if f, err = pickFeature(func(g features.Feature) bool { return features.Enabled(ws, g) }); err != nil {
				return err
			}
		}

		on, _ := cmd.Flags().GetBool("on")
		off, _ := cmd.Flags().GetBool("off")
		if on && off {
			return fmt.Errorf("--on and --off are mutually exclusive")
		}
		enabled := !features.Enabled(ws, f)
		switch {
		case on:
			enabled = true
		case off:
			enabled = false
		}

		w, err := s.DB.ToggleFeature(id, f, enabled)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		state := "off"
		if enabled {
			state = "on"
		}
		fmt.Printf("QUEUED %s %s (%s)\n", f.Title(), state, w.WriteID)

		noPush, _ := cmd.Flags().GetBool("no-push")
		if noPush || s.offline(cmd) {
			output.Info("offline: the write stays queued until 'wsmenu push'")
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		res, err := outbox.Flush(ctx, s.DB, s.client(), id)
		if err != nil {
			output.Warning("push failed, write stays queued: %v", err)
			return nil
		}
		printFlush(res)
		return nil
	},
}

// pickFeature asks for a feature; the options show the current value.
func pickFeature(current func(features.Feature) bool) (features.Feature, error) {
	var opts []huh.Option[features.Feature]
	for _, f := range features.All() {
		label := f.Title()
		if current(f) {
			label += " (on)"
		} else {
			label += " (off)"
		}
		opts = append(opts, huh.NewOption(label, f))
	}

	var choice features.Feature
	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[features.Feature]().
			Title("Feature to toggle").
			Options(opts...).
			Value(&choice),
	)).Run()
	if err != nil {
		return features.None, err
	}
	return choice, nil
}

func init() {
	rootCmd.AddCommand(toggleCmd)
	toggleCmd.Flags().Bool("on", false, "Enable the feature")
	toggleCmd.Flags().Bool("off", false, "Disable the feature")
	toggleCmd.Flags().Bool("no-push", false, "Queue the write without pushing it")
	toggleCmd.Flags().Bool("offline", false, "Treat the client as offline (default from config)")
}
