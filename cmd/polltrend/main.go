package main

import (
	"os"

	"github.com/wonny/polltrend/cmd/polltrend/commands"
)

// main is the entry point for the polltrend CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/polltrend [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
