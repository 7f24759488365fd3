// J1939ctl encodes, decodes and exchanges SAE J1939 messages on a CAN bus.
//
// Usage:
//
//	j1939ctl [command] [flags]
//
// The bus commands (monitor, read, simulate, serve) need a SocketCAN
// interface such as can0 or vcan0. See 'j1939ctl --help' for all commands.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pragmaticQt/j1939/internal/config"
	"github.com/pragmaticQt/j1939/internal/logging"
)

// Version can be set at build time via ldflags:
//
//	go build -ldflags="-X main.Version=v1.2.3" ./cmd/j1939ctl
var Version = ""

// Global flags and the configuration they override
var (
	configPath string
	logLevel   string
	iface      string

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "j1939ctl",
	Short: "SAE J1939 message tool",
	Long: `A tool for SAE J1939 messages on CAN bus.

Encodes and decodes J1939 frames, monitors a bus, reads ECU parameters
and simulates a virtual ECU.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Version = version()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().StringVarP(&iface, "interface", "i", "", "CAN network interface (default from config, else "+config.DefaultInterface+")")

	rootCmd.AddCommand(versionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("interface") {
		cfg.Interface = iface
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return err
	}
	logging.Debug("Configuration loaded",
		zap.String("path", configPath),
		zap.String("interface", cfg.Interface),
		zap.Uint8("source_address", cfg.SourceAddress),
		zap.Uint8("ecu_address", cfg.ECUAddress),
	)
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("j1939ctl %s\n", version())
	},
}

func version() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}
