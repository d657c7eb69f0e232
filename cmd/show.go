package cmd

import (
	"errors"
	"fmt"

	"github.com/marcus/wsmenu/internal/db"
	"github.com/marcus/wsmenu/internal/output"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [workspace]",
	Short: "Print the workspace menu",
	Long: `Prints the menu entries of a workspace from the local replica. A local
draft takes precedence over the stored record.

Offline, queued writes are shown as written. Online, an entry whose write is
still in flight keeps its last displayed value.`,
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
		jsonOut, _ := cmd.Flags().GetBool("json")

		v, err := s.view(id, login, s.offline(cmd))
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				if jsonOut {
					output.JSONError(output.ErrCodeNotFound, err.Error())
				} else {
					output.Error("workspace %s not in replica (try 'wsmenu fetch %s')", id, id)
				}
				return err
			}
			output.Error("%v", err)
			return err
		}

		if jsonOut {
			return output.JSON(v)
		}
		fmt.Fprintln(cmd.OutOrStdout(), output.FormatMenu(v, !output.IsTerminal()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Bool("offline", false, "Treat the client as offline (default from config)")
	showCmd.Flags().Bool("json", false, "JSON output")
	showCmd.Flags().String("login", "", "Show the menu as this member sees it (default from config)")
}
