package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stratus-faas/stratus/internal/cache"
	"github.com/stratus-faas/stratus/internal/config"
	"github.com/stratus-faas/stratus/internal/pool"
)

// StartAPIServer registers the routes and runs the trigger ingestion API.
func StartAPIServer(e *echo.Echo) {
	e.Use(middleware.Recover())

	// Routes
	e.POST("/invoke/:fun", InvokeFunction)
	e.POST("/create", CreateFunction)
	e.POST("/delete", DeleteFunction)
	e.POST("/prewarm", PrewarmFunction)
	e.POST("/cancel/:reqId", CancelInvocation)
	e.GET("/function", GetFunctions)
	e.GET("/status/:reqId", GetInvocationStatus)
	e.GET("/poll/:reqId", PollAsyncResult)
	e.GET("/status", GetServerStatus)

	// Start server
	portNumber := config.GetInt(config.API_PORT, 1323)
	e.HideBanner = true

	if err := e.Start(fmt.Sprintf(":%d", portNumber)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		e.Logger.Fatal("shutting down the server")
	}
}

// CacheSetup configures the local function registry cache.
func CacheSetup() {
	cache.Size = config.GetInt(config.CACHE_SIZE, 100)

	d := config.GetInt(config.CACHE_CLEANUP, 60)
	cache.CleanupInterval = time.Duration(d) * time.Second

	d = config.GetInt(config.CACHE_ITEM_EXPIRATION, 60)
	cache.DefaultExp = time.Duration(d) * time.Second

	//cache first creation
	cache.GetCacheInstance()
}

// RegisterTerminationHandler destroys all execution contexts and stops the
// supervisor on SIGINT.
func RegisterTerminationHandler(sup *pool.Supervisor, e *echo.Echo) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		sig := <-c
		fmt.Printf("Got %s signal. Terminating...\n", sig)

		sched.Stop()
		sup.Stop()
		pools.ShutdownAll()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			log.Fatal(err)
		}

		os.Exit(0)
	}()
}
