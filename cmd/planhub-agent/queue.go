package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planhub/core/internal/models"
	"github.com/planhub/core/internal/storage"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or clear the pending change queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending changes in sync order",
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
		if len(changes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "queue is empty")
			return nil
		}
		for _, change := range changes {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %-6s entity=%s enqueued=%s\n",
				change.ID, change.ResourceType, change.Op,
				change.Payload.ID(),
				change.EnqueuedAtTime().Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d pending change(s)\n", len(changes))
		return nil
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear [resource-type]",
	Short: "Drop pending changes, optionally for one resource type",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := storage.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer db.Close()

		if len(args) == 1 {
			rt := models.ResourceType(args[0])
			if !rt.Valid() {
				return fmt.Errorf("unknown resource type %q", args[0])
			}
			if err := db.ClearChanges(cmd.Context(), rt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared pending changes for %s\n", rt)
			return nil
		}

		if err := db.ClearAllChanges(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cleared all pending changes")
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueClearCmd)
}
