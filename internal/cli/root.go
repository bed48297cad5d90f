// Package cli implements the crossroads command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crossroads-network/crossroads/internal/api"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "crossroads",
	Short: "Collective-decision voting engine",
	Long: `Crossroads runs community decision scenarios: balance candidate
scenarios against a synthetic electorate before publication, collect
deduplicated live votes, and settle outcomes when a scenario closes.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config file")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the crossroads version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "crossroads %s\n", api.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
