// Package main provides the scout CLI:
// - serve: live trend groups with official-target tracking and a read-only HTTP API
// - hunt: headless recorder that claims the official target
// - search: manual lookup on the upstream token API
// - migrate: applies the remote store schema
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trend-scout/internal/config"
	"trend-scout/internal/logging"
)

var (
	configPath string
	envDir     string
	logLevel   string
	prettyLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "Real-time pump.fun trend scout",
	Long: `scout classifies newly minted tokens from the PumpPortal stream into themed
trend groups and tracks a single official target token, shared across clients
through a remote store.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envDir, "env-dir", ".", "Directory containing .env and .env.local")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "Human-readable console logs")

	rootCmd.AddCommand(serveCmd, huntCmd, searchCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves dotenv files, the YAML file, the environment and the
// persistent flags, in that order.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	if err := config.LoadDotEnv(envDir); err != nil {
		return nil, zerolog.Nop(), err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if prettyLogs {
		cfg.Log.Pretty = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Pretty), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ignoreCanceled treats a context shutdown as a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
