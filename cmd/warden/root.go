package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"irondiscipline/warden/pkg/cli"
	"irondiscipline/warden/pkg/config"
)

// Global flags
var cfgFile string

const defaultConfigFile = "warden.yaml"

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - player confinement service",
	Long: `Warden confines players to a configured area, stores their possessions
while they are confined and restores everything on release.

Confinements survive restarts: records are kept in SQLite or Postgres and
reconciled when a player joins.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile, "config file path")
}

// loadConfig loads the configuration file with environment overrides. A
// missing default file falls back to defaults; a missing file named with
// --config is an error. It returns the path actually read, empty when none.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path := cfgFile
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		path = ""
	}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, "", cli.NewConfigError("", err.Error())
	}
	return cfg, path, nil
}
