package cmd

import (
	"fmt"

	"github.com/marcus/wsmenu/internal/output"
	"github.com/spf13/cobra"
)

var forgetCmd = &cobra.Command{
	Use:   "forget [workspace]",
	Short: "Remove a workspace from the replica",
	Long: `Removes the stored record, its draft and any queued writes. Queued writes
are lost, so push first if they matter. With --draft only the draft is
removed and the stored record is shown again.`,
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

		if draftOnly, _ := cmd.Flags().GetBool("draft"); draftOnly {
			if err := s.DB.DeleteDraft(id); err != nil {
				output.Error("discard draft %s: %v", id, err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "DISCARDED draft %s\n", id)
			return nil
		}

		writes, err := s.DB.PendingWrites(id)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if len(writes) > 0 {
			output.Warning("dropping %d queued write(s) for %s", len(writes), id)
		}
		if err := s.DB.DeleteWorkspace(id); err != nil {
			output.Error("forget %s: %v", id, err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "FORGOT %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(forgetCmd)
	forgetCmd.Flags().Bool("draft", false, "Only discard the local draft")
}
