package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marcus/wsmenu/internal/db"
	"github.com/marcus/wsmenu/internal/output"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize the local workspace replica",
	Long:    `Creates the local .wsmenu directory and the replica database.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := getBaseDir()

		if _, err := os.Stat(db.Path(baseDir)); err == nil {
			output.Warning(".wsmenu/ already initialized")
			return nil
		}

		database, err := db.Initialize(baseDir)
		if err != nil {
			output.Error("failed to initialize replica: %v", err)
			return err
		}
		defer database.Close()

		fmt.Printf("INITIALIZED %s\n", filepath.Join(database.BaseDir(), ".wsmenu"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
