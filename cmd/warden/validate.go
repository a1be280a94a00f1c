package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file with environment overrides applied and report
every invalid field.

Examples:
  # Validate the default file
  warden validate

  # Validate a specific file
  warden validate --config /etc/warden/warden.yaml`,
	Args: cobra.NoArgs,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if path == "" {
		fmt.Fprintln(out, "No configuration file found, using defaults")
	} else {
		fmt.Fprintf(out, "Configuration %s is valid\n", path)
	}

	location := cfg.Containment.Location
	if location == "" {
		location = "not configured (confinement requests will be refused)"
	}
	fmt.Fprintf(out, "  location: %s (radius %.1f)\n", location, cfg.Containment.Radius)
	fmt.Fprintf(out, "  store:    %s\n", cfg.Store.Backend)
	if cfg.Admin.Enabled {
		fmt.Fprintf(out, "  admin:    %s\n", cfg.Admin.ListenAddress)
	} else {
		fmt.Fprintln(out, "  admin:    disabled")
	}
	return nil
}
