package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/normanking/monavatar/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			for _, adj := range cfg.Clamp() {
				fmt.Fprintf(os.Stderr, "clamped: %s\n", adj)
			}

			fmt.Println("Monavatar Configuration:")
			fmt.Println("------------------------")
			fmt.Printf("Bridge Address:  %s\n", cfg.Bridge.Addr)
			fmt.Printf("Frame Rate:      %d\n", cfg.Bridge.FrameRate)
			fmt.Printf("Sample Rate:     %d\n", cfg.Audio.SampleRate)
			fmt.Printf("FFT Size:        %d\n", cfg.Audio.FFTSize)
			fmt.Printf("High Fidelity:   %t\n", cfg.LipSync.HighFidelity)
			fmt.Printf("Smoothing Mode:  %s\n", cfg.LipSync.Smoothing.Mode)
			fmt.Printf("Shape Table:     %s\n", orDefault(cfg.ShapeTablePath, "(built-in)"))
			fmt.Printf("Log Level:       %s\n", cfg.Logging.Level)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(configFilePath())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFilePath()
			if path == "" {
				return fmt.Errorf("cannot resolve config path")
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			if err := config.Save(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Printf("Wrote default configuration to %s\n", path)
			return nil
		},
	})

	return cmd
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
