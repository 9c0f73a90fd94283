package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/planhub/core/internal/config"
	"github.com/planhub/core/internal/logging"
)

var (
	cfg      config.Config
	registry config.Registry

	registryFlag string
)

var rootCmd = &cobra.Command{
	Use:           "planhub-agent",
	Short:         "Local sync agent for the planning dashboard",
	Long:          "planhub-agent mirrors the dashboard backend into a local store,\nqueues offline mutations, and keeps the mirror fresh over REST and\nWebSocket rooms.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.FromEnv()
		if err != nil {
			return err
		}
		logging.Init(os.Stderr, logging.LogLevel(cfg.LogLevel))

		path := registryFlag
		if path == "" {
			path = cfg.RegistryPath
		}
		if path != "" {
			registry, err = config.LoadRegistry(path)
			if err != nil {
				return err
			}
		} else {
			registry = config.DefaultRegistry()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&registryFlag, "registry", "",
		"path to a YAML resource registry overriding the built-in definitions")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(statusCmd)
}
