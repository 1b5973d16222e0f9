package main

import (
	"os"

	"github.com/pfrederiksen/callsign-mirror/internal/cli"
	"github.com/pfrederiksen/callsign-mirror/internal/config"
	"github.com/pfrederiksen/callsign-mirror/internal/logger"
)

func main() {
	// Load .env file if it exists
	if err := config.LoadDotEnv(); err != nil {
		logger.Error("Loading .env failed", nil, err)
		os.Exit(cli.ExitError)
	}

	os.Exit(cli.Execute())
}
