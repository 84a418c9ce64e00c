package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tbshrst/talos-discovery/pkg/api"
	"github.com/tbshrst/talos-discovery/pkg/backup"
	"github.com/tbshrst/talos-discovery/pkg/config"
	"github.com/tbshrst/talos-discovery/pkg/gc"
	"github.com/tbshrst/talos-discovery/pkg/log"
	"github.com/tbshrst/talos-discovery/pkg/metrics"
	"github.com/tbshrst/talos-discovery/pkg/registry"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "discoveryd",
	Short: "Discovery service for cluster membership",
	Long: `Discoveryd is a rendezvous point for cluster members: affiliates
publish opaque, TTL-bounded records under a cluster ID and subscribe
to a live feed of the cluster's membership. Payloads are end-to-end
encrypted by clients; the server is an oblivious relay.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"discoveryd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	// Initialize logging before command execution
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(helloCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(watchCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the discovery server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		reg := registry.New()

		engine := backup.NewEngine(reg, cfg.BackupPath, cfg.BackupIntervalDuration())
		if err := engine.Restore(); err != nil {
			return fmt.Errorf("failed to restore backup: %w", err)
		}
		engine.Start()
		defer engine.Stop()

		collector := gc.NewCollector(reg, cfg.GCIntervalDuration())
		collector.Start()
		defer collector.Stop()

		if cfg.MetricsAddr != "" {
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
					log.Logger.Error().Err(err).Msg("Metrics server error")
				}
			}()
			log.Logger.Info().Str("addr", cfg.MetricsAddr).Msg("Metrics endpoint enabled")
		}

		srv := api.NewServer(reg)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(fmt.Sprintf("0.0.0.0:%d", cfg.Port))
		}()

		log.Logger.Info().Int("port", cfg.Port).Msg("Starting discovery service gRPC server")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			log.Logger.Info().Str("signal", sig.String()).Msg("Shutting down")
			srv.Stop()
			return nil
		}
	},
}

// resolveConfig layers the configuration: flag > env > file > default.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("gc-interval") {
		cfg.GCInterval, _ = cmd.Flags().GetInt("gc-interval")
	}
	if cmd.Flags().Changed("backup-path") {
		cfg.BackupPath, _ = cmd.Flags().GetString("backup-path")
	}
	if cmd.Flags().Changed("backup-interval") {
		cfg.BackupInterval, _ = cmd.Flags().GetInt("backup-interval")
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func init() {
	serveCmd.Flags().Int("port", 3000, "Listen port")
	serveCmd.Flags().Int("gc-interval", 60, "Garbage collection interval in seconds")
	serveCmd.Flags().String("backup-path", "", "Backup directory (backups disabled when unset)")
	serveCmd.Flags().Int("backup-interval", 600, "Backup interval in seconds")
	serveCmd.Flags().String("metrics-addr", "", "Prometheus metrics listen address (disabled when unset)")
	serveCmd.Flags().String("config", "", "Path to YAML config file")
}
