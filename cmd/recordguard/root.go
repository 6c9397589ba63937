package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"recordguard-hq/recordguard/pkg/cli"
	"recordguard-hq/recordguard/pkg/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "recordguard",
	Short: "RecordGuard - validation pipeline for business records",
	Long: `RecordGuard validates business records before they are persisted.

Every record passes through a fixed pipeline:
  - Input sanitization (markup, control characters, nesting limits)
  - Schema validation against registered entity schemas
  - Security policies (access, field restrictions, threat detection)
  - Compliance frameworks (GDPR, CCPA, HIPAA and custom rules)
  - Data quality scoring across six dimensions

Configuration is read from --config when given, then from RECORDGUARD_*
environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		var invalid *cli.InvalidRecordsError
		if !errors.As(err, &invalid) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults plus environment when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the configuration selected by --config and the
// environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		source := cfgFile
		if source == "" {
			source = "environment"
		}
		return nil, cli.NewConfigError(source, err.Error())
	}
	return cfg, nil
}
