package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/planhub/core/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent: periodic sync plus realtime rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildAgent(ctx, cfg, registry)
		if err != nil {
			return err
		}
		defer a.Close()

		log := logging.Get().WithComponent("agent")
		log.Info("agent starting", map[string]interface{}{
			"api_url":  cfg.APIURL,
			"ws_url":   cfg.WSURL,
			"data_dir": cfg.DataDir,
			"rooms":    cfg.Rooms,
		})

		a.engine.Start()
		a.relay.Connect()

		// First cycle immediately so the mirror is warm before the
		// first periodic tick.
		go a.engine.TrySync(context.Background())

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		select {
		case sig := <-stop:
			log.Info("shutting down", map[string]interface{}{"signal": sig.String()})
		case <-ctx.Done():
		}
		return nil
	},
}
