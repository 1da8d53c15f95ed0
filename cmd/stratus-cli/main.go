package main

import (
	"github.com/stratus-faas/stratus/internal/cli"
	"github.com/stratus-faas/stratus/internal/config"
)

func main() {
	config.ReadConfiguration("")

	// Set defaults
	cli.ServerConfig.Host = config.GetString("cli.host", "127.0.0.1")
	cli.ServerConfig.Port = config.GetInt(config.API_PORT, 1323)

	cli.Init()
}
