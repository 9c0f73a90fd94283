package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planhub/core/internal/storage"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read or change the durable user settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := storage.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer db.Close()

		settings, err := db.Settings(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "auto_refresh:     %t\n", settings.AutoRefresh)
		fmt.Fprintf(cmd.OutOrStdout(), "refresh_interval: %ds\n", settings.RefreshInterval)
		fmt.Fprintf(cmd.OutOrStdout(), "notifications:    %t\n", settings.Notifications)
		fmt.Fprintf(cmd.OutOrStdout(), "theme:            %s\n", settings.Theme)
		return nil
	},
}

var (
	setAutoRefresh   bool
	setInterval      int
	setNotifications bool
	setTheme         string
)

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change settings; only the given flags are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := storage.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer db.Close()

		settings, err := db.Settings(cmd.Context())
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("auto-refresh") {
			settings.AutoRefresh = setAutoRefresh
		}
		if cmd.Flags().Changed("interval") {
			if setInterval <= 0 {
				return fmt.Errorf("interval must be positive, got %d", setInterval)
			}
			settings.RefreshInterval = setInterval
		}
		if cmd.Flags().Changed("notifications") {
			settings.Notifications = setNotifications
		}
		if cmd.Flags().Changed("theme") {
			settings.Theme = setTheme
		}

		if err := db.SaveSettings(cmd.Context(), settings); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "settings saved")
		return nil
	},
}

func init() {
	settingsSetCmd.Flags().BoolVar(&setAutoRefresh, "auto-refresh", true, "enable periodic refresh")
	settingsSetCmd.Flags().IntVar(&setInterval, "interval", 30, "refresh interval in seconds")
	settingsSetCmd.Flags().BoolVar(&setNotifications, "notifications", true, "enable notifications")
	settingsSetCmd.Flags().StringVar(&setTheme, "theme", "light", "UI theme name")

	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}
