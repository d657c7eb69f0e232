package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/marcus/wsmenu/internal/outbox"
	"github.com/marcus/wsmenu/internal/output"
	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push [workspace]",
	Short: "Send queued feature writes to the authority",
	Long: `Sends queued writes in order and applies each echo to the replica.
With --all every workspace is pushed. A network failure stops the push and
leaves the remaining writes queued.`,
	GroupID: "sync",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		var id string
		if all, _ := cmd.Flags().GetBool("all"); !all {
			if id, err = s.workspaceArg(args); err != nil {
				output.Error("%v", err)
				return err
			}
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		res, err := outbox.Flush(ctx, s.DB, s.client(), id)
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			if err != nil {
				output.JSONError(output.ErrCodeUnavailable, err.Error())
				return err
			}
			return output.JSON(res)
		}
		printFlush(res)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		return nil
	},
}

func printFlush(res outbox.Result) {
	if res.Sent == 0 && res.Remaining == 0 {
		fmt.Println("Nothing to push")
		return
	}
	fmt.Printf("PUSHED %d write(s): %d applied, %d rejected, %d superseded, %d stale\n",
		res.Sent, res.Applied, res.Rejected, res.Superseded, res.Stale)
	if res.Remaining > 0 {
		output.Warning("%d write(s) still queued", res.Remaining)
	}
}

func init() {
	rootCmd.AddCommand(pushCmd)
	pushCmd.Flags().Bool("all", false, "Push writes of every workspace")
	pushCmd.Flags().Bool("json", false, "JSON output")
	pushCmd.Flags().Duration("timeout", 30*time.Second, "Overall push timeout")
}
