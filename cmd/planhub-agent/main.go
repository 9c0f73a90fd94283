// Package main provides the planhub-agent CLI: the local sync agent for
// the dashboard, keeping an offline-capable mirror of the backend.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
