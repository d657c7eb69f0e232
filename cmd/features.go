package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/output"
	"github.com/spf13/cobra"
)

type featureInfo struct {
	Name  string `json:"name"`
	Key   string `json:"key"`
	Title string `json:"title"`
}

var featuresCmd = &cobra.Command{
	Use:     "features",
	Short:   "List togglable workspace features in menu order",
	GroupID: "core",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all := features.All()
		infos := make([]featureInfo, len(all))
		for i, f := range all {
			infos[i] = featureInfo{Name: f.String(), Key: f.Key(), Title: f.Title()}
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(infos)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tRECORD KEY\tTITLE")
		for _, fi := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\n", fi.Name, fi.Key, fi.Title)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(featuresCmd)
	featuresCmd.Flags().Bool("json", false, "JSON output")
}
