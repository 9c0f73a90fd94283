package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planhub/core/internal/models"
	"github.com/planhub/core/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-type cursors and queue depth",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := storage.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer db.Close()

		changes, err := db.LoadChanges(cmd.Context())
		if err != nil {
			return err
		}
		pending := make(map[models.ResourceType]int)
		for _, change := range changes {
			pending[change.ResourceType]++
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-30s %s\n", "type", "last synced", "pending")
		for _, rt := range models.ResourceTypes() {
			cursor, err := db.Cursor(cmd.Context(), rt)
			if err != nil {
				return err
			}
			lastSynced := cursor.LastSyncedAt
			if lastSynced == "" {
				lastSynced = "never"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-30s %d\n", rt, lastSynced, pending[rt])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d pending change(s) total\n", len(changes))
		return nil
	},
}
