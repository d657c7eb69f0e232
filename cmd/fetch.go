package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/marcus/wsmenu/internal/output"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [workspace]",
	Short: "Refresh replica records from the authority",
	Long: `Fetches workspace records and merges them into the replica. Features with
queued or unconfirmed writes keep their local value and pending marker.
With --all every workspace the authority knows is fetched.`,
	GroupID: "sync",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		client := s.client()

		var ids []string
		if all, _ := cmd.Flags().GetBool("all"); all {
			if ids, err = client.ListWorkspaces(ctx); err != nil {
				output.Error("list workspaces: %v", err)
				return err
			}
		} else {
			id, err := s.workspaceArg(args)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			ids = []string{id}
		}

		for _, id := range ids {
			fetched, err := client.FetchWorkspace(ctx, id)
			if err != nil {
				output.Error("fetch %s: %v", id, err)
				return err
			}
			merged, err := s.DB.MergeFetched(fetched)
			if err != nil {
				output.Error("merge %s: %v", id, err)
				return err
			}
			fmt.Printf("FETCHED %s (version %d)\n", merged.ID, merged.Version)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().Bool("all", false, "Fetch every workspace")
	fetchCmd.Flags().Duration("timeout", 30*time.Second, "Overall fetch timeout")
}
