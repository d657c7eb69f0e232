package cmd

import (
	"fmt"

	"github.com/marcus/wsmenu/internal/fixtures"
	"github.com/marcus/wsmenu/internal/output"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Load workspace records from a YAML or JSON fixture",
	Long: `Replaces the replica records of every workspace in the fixture file.
Queued writes for other workspaces are kept.`,
	GroupID: "system",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		records, err := fixtures.Load(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		draft, _ := cmd.Flags().GetBool("draft")
		for _, ws := range records {
			if draft {
				err = s.DB.PutDraft(ws)
			} else {
				err = s.DB.PutWorkspace(ws)
			}
			if err != nil {
				output.Error("store %s: %v", ws.ID, err)
				return err
			}
		}

		kind := "workspace"
		if draft {
			kind = "draft"
		}
		output.Success("SEEDED %d %s record(s) from %s", len(records), kind, args[0])
		if s.Config.WorkspaceID == "" && len(records) == 1 {
			fmt.Printf("Tip: wsmenu config set workspace_id %s\n", records[0].ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().Bool("draft", false, "Store the records as local drafts instead")
}
