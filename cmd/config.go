package cmd

import (
	"fmt"

	"github.com/marcus/wsmenu/internal/config"
	"github.com/marcus/wsmenu/internal/output"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage wsmenu configuration",
	GroupID: "system",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(getBaseDir(), args[0], args[1]); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("%s = %s", args[0], args[1])
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a stored config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.Get(getBaseDir(), args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List config values",
	Long:  `Lists stored values. With --effective, environment overrides and defaults are applied.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := getBaseDir()
		values, err := config.List(baseDir)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if effective, _ := cmd.Flags().GetBool("effective"); effective {
			cfg, err := config.Effective(baseDir)
			if err != nil {
				return err
			}
			values["server_url"] = cfg.ServerURL
			values["amqp_url"] = cfg.AMQPURL
			values["offline"] = fmt.Sprint(cfg.Offline)
			values["highlight_ms"] = fmt.Sprint(cfg.HighlightMS)
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(values)
		}
		for _, k := range config.Keys() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", k, values[k])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd, configGetCmd, configListCmd)
	configListCmd.Flags().Bool("effective", false, "Apply environment overrides and defaults")
	configListCmd.Flags().Bool("json", false, "JSON output")
}
