package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tracelight-labs/tracelight-go/internal/graph"
	"github.com/tracelight-labs/tracelight-go/internal/platform/env"
	"github.com/tracelight-labs/tracelight-go/internal/platform/httpserver"
	"github.com/tracelight-labs/tracelight-go/internal/platform/postgres"
	"github.com/tracelight-labs/tracelight-go/internal/platform/sqlite"
	"github.com/tracelight-labs/tracelight-go/internal/provider"
	"github.com/tracelight-labs/tracelight-go/internal/provider/local"
	"github.com/tracelight-labs/tracelight-go/internal/provider/minioapi"
	"github.com/tracelight-labs/tracelight-go/internal/schema"
	"github.com/tracelight-labs/tracelight-go/internal/schemastore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("HARVESTER_HTTP_ADDR", ":8085")
	shutdownTimeout, err := env.Duration("HARVESTER_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	concurrency, err := env.Int("HARVESTER_CONCURRENCY", 4)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	pipelines, err := newPipelineProvider()
	if err != nil {
		logger.Error("pipeline provider unavailable", "error", err)
		os.Exit(2)
	}

	minioCfg, err := minioapi.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	objects, err := minioapi.New(minioCfg)
	if err != nil {
		logger.Error("object store unavailable", "error", err)
		os.Exit(1)
	}

	db, store, err := openSchemaStore(ctx)
	if err != nil {
		logger.Error("schema store unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("schema store migration failed", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("harvester"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"harvester",
			httpserver.ReadinessCheck{
				Name: "schema-store",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
		),
	)

	builder := graph.New(pipelines, objects, logger, concurrency)
	sampler := schema.NewSampler(objects)
	api := newHarvesterAPI(logger, builder, sampler, store)
	api.register(mux)

	cfg := httpserver.Config{
		Service:         "harvester",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "harvester", mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// newPipelineProvider selects the pipeline capability. Only the fixture
// backend ships here; a control-plane backend plugs in behind the same
// interface.
func newPipelineProvider() (provider.PipelineAPI, error) {
	dir := env.String("HARVESTER_FIXTURE_DIR", "./fixtures")
	return local.New(dir)
}

type schemaStore interface {
	schemastore.Store
	EnsureSchema(ctx context.Context) error
}

func openSchemaStore(ctx context.Context) (*sql.DB, schemaStore, error) {
	driver := env.String("SCHEMA_STORE_DRIVER", "sqlite")
	switch driver {
	case "postgres":
		cfg, err := postgres.ConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		db, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return db, schemastore.NewPostgres(db), nil
	case "sqlite":
		cfg, err := sqlite.ConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		db, err := sqlite.Open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return db, schemastore.NewSQLite(db), nil
	default:
		return nil, nil, errors.New("SCHEMA_STORE_DRIVER must be sqlite or postgres")
	}
}
