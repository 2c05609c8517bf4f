// Command idctl administers the attendance store: provisioning, catalog maintenance,
// listings and exports.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/automatistasidl/id-coletivo/internal/app"
	"github.com/automatistasidl/id-coletivo/internal/config"
	"github.com/automatistasidl/id-coletivo/internal/platform/logging"
)

func main() {
	if err := newCLI(loadFromEnv).execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadFromEnv(ctx context.Context, logLevel string) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	logger := logging.NewLoggerTo(os.Stderr, "idctl", logging.ParseLevel(logLevel))
	return app.New(ctx, cfg, logger)
}
