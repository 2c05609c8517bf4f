package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/automatistasidl/id-coletivo/internal/app"
	"github.com/automatistasidl/id-coletivo/internal/config"
	"github.com/automatistasidl/id-coletivo/internal/httpapi"
	"github.com/automatistasidl/id-coletivo/internal/platform/logging"
	sharedserver "github.com/automatistasidl/id-coletivo/internal/platform/server"
)

const serviceName = "id-coletivo"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLoggerTo(os.Stdout, serviceName, logging.ParseLevel(cfg.LogLevel))

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		panic(fmt.Errorf("app init error: %w", err))
	}
	defer application.Close()

	schemaCtx, schemaCancel := context.WithTimeout(ctx, 30*time.Second)
	err = application.EnsureSchema(schemaCtx)
	schemaCancel()
	if err != nil {
		panic(fmt.Errorf("backing store init error: %w", err))
	}
	logger.Info("backing store ready", "datastore", cfg.DataStore)

	application.StartWatcher(ctx)

	router := sharedserver.NewRouter(serviceName, func(r chi.Router) {
		r.Handle("/metrics", promhttp.Handler())
		httpapi.RegisterRoutes(r, httpapi.Dependencies{
			Service:  application.Service,
			Sessions: application.Sessions,
			Exporter: application.Exporter,
			Logger:   logger,
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := sharedserver.Run(ctx, srv, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}
