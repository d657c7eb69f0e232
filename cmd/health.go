package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marcus/wsmenu/internal/output"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the authority and print its counters",
	GroupID: "sync",
	Args:    cobra.NoArgs,
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

		health, err := client.HealthCheck(ctx)
		if err != nil {
			output.Error("%s unreachable: %v", s.Config.ServerURL, err)
			return err
		}
		metrics, err := client.Metrics(ctx)
		if err != nil {
			output.Warning("metrics unavailable: %v", err)
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(map[string]any{"status": health.Status, "metrics": metrics})
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, output.SectionHeader("Authority"))
		fmt.Fprintf(out, "%s %s\n", s.Config.ServerURL, output.Subtle(health.Status))
		if len(metrics) == 0 {
			return nil
		}
		fmt.Fprint(out, output.SectionHeader("Counters"))
		names := make([]string, 0, len(metrics))
		for k := range metrics {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if k == "uptime_seconds" {
				up := time.Duration(metrics[k] * float64(time.Second))
				fmt.Fprintf(out, "  %-18s %s\n", "uptime", up.Truncate(time.Second))
				continue
			}
			fmt.Fprintf(out, "  %-18s %s\n", k, humanize.Comma(int64(metrics[k])))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().Bool("json", false, "JSON output")
	healthCmd.Flags().Duration("timeout", 5*time.Second, "Request timeout")
}
