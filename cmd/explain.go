package cmd

import (
	"fmt"

	"github.com/marcus/wsmenu/internal/output"
	"github.com/marcus/wsmenu/internal/signals"
	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain [workspace]",
	Short: "Explain why each feature shows the value it does",
	Long: `Renders a report of displayed and recorded feature values, pending
markers, outstanding writes, recorded rejections and raised error indicators.`,
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
		login, _ := cmd.Flags().GetString("login")
		v, err := s.view(id, login, s.offline(cmd))
		if err != nil {
			output.Error("%v", err)
			return err
		}
		writes, err := s.DB.OutstandingWrites(id)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		md := output.ExplainMarkdown(output.Explanation{
			View:    v,
			Writes:  writes,
			Signals: signals.Compute(v.Workspace, false),
		})
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			fmt.Print(md)
			return nil
		}
		rendered, err := output.RenderMarkdown(md)
		if err != nil {
			fmt.Print(md)
			return nil
		}
		fmt.Println(rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)
	explainCmd.Flags().Bool("offline", false, "Treat the client as offline (default from config)")
	explainCmd.Flags().String("login", "", "Explain as this member")
	explainCmd.Flags().Bool("raw", false, "Print markdown without rendering")
}
