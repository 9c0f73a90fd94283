// Package main runs the development stub backend: the /api/v1
// collection endpoints plus the /ws room fanout, all in memory. It
// exists so the agent can be developed and demoed without the product
// server.
package main

import (
	"net/http"
	"os"

	"github.com/planhub/core/internal/logging"
	"github.com/planhub/core/internal/stub"
)

func main() {
	addr := os.Getenv("PLANHUB_STUB_ADDR")
	if addr == "" {
		addr = ":8090"
	}
	logging.Init(os.Stderr, logging.LevelInfo)
	log := logging.Get().WithComponent("stubserver")

	server := stub.New(stub.Config{Logger: logging.Get()})
	defer server.Close()

	log.Info("stub backend listening", map[string]interface{}{"addr": addr})
	if err := http.ListenAndServe(addr, server.Handler()); err != nil {
		log.Error("server stopped", err)
		os.Exit(1)
	}
}
