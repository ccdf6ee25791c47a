// Package cli provides the command-line interface for FinCortex
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/config"
	"github.com/dyike/FinCortex/internal/logger"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "0.1.0"

// Run starts the CLI application
func Run() {
	rootCmd := NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the root pre-run has loaded
// the configuration.
type app struct {
	configPath string
	einoDebug  bool
	debug      bool

	manager *config.Manager
	cfg     config.Config
	log     *zap.Logger
	level   zap.AtomicLevel
}

func (a *app) load() error {
	manager, err := config.NewManager(
		config.WithConfigPath(a.configPath),
		config.WithEnvOverrides(),
	)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg := manager.Get()
	if a.einoDebug {
		cfg.EinoDebugEnabled = true
	}
	if a.debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	log, level, err := logger.NewLeveled(cfg.LogEnv, cfg.LogLevel)
	if err != nil {
		return err
	}
	manager.SetLogger(log)

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	a.manager = manager
	a.cfg = cfg
	a.log = log
	a.level = level
	return nil
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "fincortex",
		Short: "FinCortex - retrieval-augmented financial analysis",
		Long: `FinCortex answers questions about a company by combining SEC filing retrieval,
market data, news headlines and a structured risk assessment into one analyst note.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newAnalyzeCmd(a))
	rootCmd.AddCommand(newIndexCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&a.einoDebug, "eino-debug", false, "Enable Eino visual debugging")

	return rootCmd
}
