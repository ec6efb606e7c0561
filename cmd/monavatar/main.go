// Package main is the entry point for the monavatar animation host.
// It drives the avatar state machine and lip-sync engine at frame rate
// and streams the resulting pose and mouth vectors to render adapters.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/normanking/monavatar/internal/config"
	"github.com/normanking/monavatar/internal/logging"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	log     *logging.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "monavatar",
		Short: "Monavatar - procedural avatar motion and lip-sync host",
		Long: `Monavatar animates a virtual character without keyframes: a
conversational state machine produces physically smoothed head, eye and
body motion, and a lip-sync engine maps audio or cue tracks onto mouth
blend shapes. Render adapters connect over WebSocket and draw the frames.

Run the headless host:   monavatar run
Terminal preview:        monavatar preview
Write default config:    monavatar config init`,
		PersistentPreRunE: initLogging,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.monavatar/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("monavatar v%s\n", version)
		},
	})

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := &logging.Config{
		LogDir:  cfg.Logging.Dir,
		Level:   logging.LogLevel(cfg.Logging.Level),
		Console: cfg.Logging.Console,
	}
	if verbose {
		logCfg.Level = logging.LevelDebug
	}
	if cmd.Name() == "preview" {
		// Console output would fight the TUI for the terminal.
		logCfg.Console = false
	}

	log, err = logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	return nil
}
