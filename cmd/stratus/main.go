package main

import (
	"os"

	"github.com/labstack/echo/v4"
	"github.com/stratus-faas/stratus/internal/api"
	"github.com/stratus-faas/stratus/internal/config"
	"github.com/stratus-faas/stratus/internal/container"
	"github.com/stratus-faas/stratus/internal/metrics"
	"github.com/stratus-faas/stratus/internal/pool"
	"github.com/stratus-faas/stratus/internal/scheduling"
)

func main() {
	configFileName := ""
	if len(os.Args) > 1 {
		configFileName = os.Args[1]
	}
	config.ReadConfiguration(configFileName)

	api.CacheSetup()

	container.InitFactory()

	pools := pool.NewManager(container.NewProvisioner())
	sched := scheduling.New(pools)
	api.Init(sched, pools)

	supervisor := pool.StartSupervisor(pools)

	go metrics.Init()

	e := echo.New()

	// Register a signal handler to cleanup things on termination
	api.RegisterTerminationHandler(supervisor, e)

	api.StartAPIServer(e)
}
