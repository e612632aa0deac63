// Package main is the entry point for the parlor persona chat service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bdobrica/parlor/common/version"
	"github.com/bdobrica/parlor/internal/parlor/config"
	"github.com/bdobrica/parlor/internal/parlor/logging"
)

var configPath string

func main() {
	logging.Preinit()

	rootCmd := &cobra.Command{
		Use:   "parlor",
		Short: "Persona chat response service",
		Long: `parlor answers chat messages in the voice of a configured persona.

Replies come from learned question/answer pairs when one matches and from
templated fallbacks otherwise. Conversations end after the persona's
message count with a scripted closing message.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default $PARLOR_CONFIG or "+config.DefaultPath+")")

	rootCmd.AddCommand(
		serveCmd(),
		trainCmd(),
		personasCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config and switches logging to its settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logging.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("logging init failed: %w", err)
	}
	return cfg, nil
}
