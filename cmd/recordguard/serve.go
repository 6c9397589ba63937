package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"recordguard-hq/recordguard/pkg/app"
	"recordguard-hq/recordguard/pkg/cli"
	"recordguard-hq/recordguard/pkg/config"
	"recordguard-hq/recordguard/pkg/server"
	"recordguard-hq/recordguard/pkg/telemetry/health"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the validation HTTP API",
	Long: `Start the validation API with the specified configuration.

The server exposes record validation, schema lookup, statistics and the
audit trail, plus health, readiness and Prometheus metrics endpoints.
SIGINT or SIGTERM shut it down gracefully.

Examples:
  # Start with defaults and environment overrides
  recordguard serve

  # Start with a config file
  recordguard serve --config /etc/recordguard/config.yaml

  # Override listen address
  recordguard serve --listen 0.0.0.0:8080

  # Validate config without starting the server
  recordguard serve --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	} else if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("flags", err.Error())
	}

	out := cmd.OutOrStdout()
	if serveFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	a, err := app.New(cfg, app.WithVersion(Version))
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			a.Logger.Error("shutdown incomplete", "error", err)
		}
	}()

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()
	if err := a.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}

	opts := []server.Option{
		server.WithLogger(a.Logger),
		server.WithHealth(a.Health, health.NewVersionInfo(Version, GitCommit, BuildDate)),
	}
	if cfg.Telemetry.Metrics.Enabled {
		opts = append(opts, server.WithMetrics(cfg.Telemetry.Metrics.Path, a.Collector.Handler()))
	}
	srv, err := server.NewServer(&cfg.Server, a.Engine, opts...)
	if err != nil {
		return cli.NewConfigError("server.auth", err.Error())
	}

	printBanner(cmd, cfg, len(a.Registry.Types()))
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

func printBanner(cmd *cobra.Command, cfg *config.Config, schemaTypes int) {
	out := cmd.OutOrStdout()
	source := cfgFile
	if source == "" {
		source = "defaults and environment"
	}
	fmt.Fprintf(out, "RecordGuard v%s\n", Version)
	fmt.Fprintf(out, "Configuration: %s\n", source)
	fmt.Fprintf(out, "✓ Schemas registered (%d types)\n", schemaTypes)
	scheme := "http"
	if cfg.Server.TLS.Enabled {
		scheme = "https"
	}
	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(out, "✓ Health endpoint: %s://%s/health\n", scheme, cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: %s://%s%s\n", scheme, cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	if cfg.Server.Auth.Enabled {
		fmt.Fprintf(out, "✓ API key authentication (%d keys)\n", len(cfg.Server.Auth.Keys))
	}
	if cfg.Server.RateLimit.Enabled {
		fmt.Fprintln(out, "✓ Rate limiting enabled")
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
}
