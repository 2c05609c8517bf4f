// Package app assembles the attendance service from configuration. Both the HTTP server and
// the admin CLI build their dependencies through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"

	"github.com/automatistasidl/id-coletivo/internal/attendance"
	"github.com/automatistasidl/id-coletivo/internal/config"
	"github.com/automatistasidl/id-coletivo/internal/events"
	"github.com/automatistasidl/id-coletivo/internal/export"
	"github.com/automatistasidl/id-coletivo/internal/session"
)

// App holds the wired components and the cleanups that release them.
type App struct {
	Config   config.Config
	Service  *attendance.Service
	Sessions *session.Manager
	// Exporter is nil when EXPORT_BUCKET is unset.
	Exporter *export.Service

	watcher  *attendance.FileWatcher
	logger   *slog.Logger
	cleanups []func()
}

// New wires every component described by cfg. It does not provision the store; call
// EnsureSchema before serving.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	store, err := a.newStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	cached := attendance.NewCachedStore(store, cfg.Cache.RecordsTTL, cfg.Cache.CatalogTTL)

	if cfg.DataStore == config.DataStoreCSV && cfg.CSV.Watch {
		csvStore := store.(*attendance.CSVStore)
		recordsPath, sectorsPath := csvStore.Paths()
		watcher, err := attendance.WatchFiles([]string{recordsPath, sectorsPath}, cached.Invalidate, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("watch csv files: %w", err)
		}
		a.watcher = watcher
		a.cleanups = append(a.cleanups, func() { _ = watcher.Close() })
	}

	opts := []attendance.Option{
		attendance.WithLogger(logger),
		attendance.WithLocation(cfg.Location),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		a.cleanups = append(a.cleanups, func() { _ = publisher.Close() })
		opts = append(opts, attendance.WithPublisher(publisher))
	}

	svc, err := attendance.NewService(cached, cfg.Policy(), cfg.Catalog.Sectors, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("attendance service: %w", err)
	}
	a.Service = svc

	sessions, err := session.NewManager(session.Config{
		Secret: cfg.Session.Secret,
		TTL:    cfg.Session.TTL,
		Secure: cfg.Session.SecureCookie,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("session manager: %w", err)
	}
	if cfg.Session.Secret == "" {
		logger.Warn("SESSION_SECRET is unset; sessions will not survive a restart")
	}
	a.Sessions = sessions

	if cfg.Export.Bucket != "" {
		sink, err := export.NewGCSSink(ctx, cfg.Export.Bucket)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("export sink: %w", err)
		}
		a.cleanups = append(a.cleanups, func() { _ = sink.Close() })
		a.Exporter = export.NewService(svc, sink, cfg.Export.Prefix)
	}

	return a, nil
}

// EnsureSchema provisions the backing store. Its error carries a remediation hint.
func (a *App) EnsureSchema(ctx context.Context) error {
	if err := a.Service.EnsureSchema(ctx); err != nil {
		if hint := attendance.Hint(err); hint != "" {
			return fmt.Errorf("%w; to fix: %s", err, hint)
		}
		return err
	}
	return nil
}

// StartWatcher runs the CSV file watcher until ctx ends. It is a no-op without a watcher.
func (a *App) StartWatcher(ctx context.Context) {
	if a.watcher == nil {
		return
	}
	go a.watcher.Run(ctx)
	a.logger.Info("watching csv tables for external changes", "dir", a.Config.CSV.Dir)
}

// Close releases every client in reverse creation order.
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

func (a *App) newStore(ctx context.Context) (attendance.Store, error) {
	cfg := a.Config
	clock := attendance.NewSystemClock(cfg.Location)
	layout := cfg.Layout()

	switch cfg.DataStore {
	case config.DataStoreCSV:
		return attendance.NewCSVStore(cfg.CSV.Dir, layout, clock), nil
	case config.DataStoreSheets:
		store, err := attendance.NewSheetsStore(ctx, attendance.SheetsConfig{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			CredentialsJSON: cfg.Sheets.CredentialsJSON,
			Layout:          layout,
			Clock:           clock,
			Endpoint:        cfg.Sheets.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DataStoreFirestore:
		if cfg.Firestore.EmulatorHost != "" {
			if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost); err != nil {
				return nil, fmt.Errorf("set FIRESTORE_EMULATOR_HOST: %w", err)
			}
		}
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		a.cleanups = append(a.cleanups, func() { _ = client.Close() })
		return attendance.NewFirestoreStore(client, layout, clock), nil
	case config.DataStoreMemory:
		return attendance.NewMemoryStore(layout, clock), nil
	default:
		return nil, errors.New("unsupported datastore: " + string(cfg.DataStore))
	}
}
