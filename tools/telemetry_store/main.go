package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reachstacker-monitor/internal/observability/metrics"
	telemetryapp "reachstacker-monitor/internal/telemetry/application"
	telemetry "reachstacker-monitor/internal/telemetry/domain"
	"reachstacker-monitor/internal/telemetry/infrastructure/memory"
	telemetrypostgres "reachstacker-monitor/internal/telemetry/infrastructure/postgres"
	"reachstacker-monitor/internal/telemetry/infrastructure/spreadsheet"
	telemetryhttp "reachstacker-monitor/internal/telemetry/interfaces/http"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := telemetryapp.LoadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	metrics.Init(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("store open error: %v", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Printf("store close error: %v", err)
		}
	}()

	service, err := telemetryapp.NewService(store,
		telemetryapp.WithLogger(logger),
		telemetryapp.WithRecordLimit(cfg.RecordLimit),
		telemetryapp.WithUnitPrefix(cfg.UnitPrefix),
		telemetryapp.WithStatusThresholds(cfg.Status.WarningAfter, cfg.Status.DisconnectedAfter),
	)
	if err != nil {
		logger.Fatalf("service error: %v", err)
	}
	if err := service.Seed(ctx, cfg.SeedUnits); err != nil {
		logger.Fatalf("seed error: %v", err)
	}

	handler, err := telemetryhttp.NewHandler(service, logger)
	if err != nil {
		logger.Fatalf("handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/", handler)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("telemetry store listening on %s backend=%s", cfg.HTTPAddr, cfg.Backend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http server error: %v", err)
	}
}

func openStore(ctx context.Context, cfg telemetryapp.Config) (telemetry.Store, func() error, error) {
	switch cfg.Backend {
	case telemetryapp.BackendMemory:
		return memory.NewStore(), func() error { return nil }, nil
	case telemetryapp.BackendPostgres:
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		store := telemetrypostgres.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	case telemetryapp.BackendSpreadsheet:
		if dir := filepath.Dir(cfg.WorkbookPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, err
			}
		}
		store, err := spreadsheet.Open(cfg.WorkbookPath, spreadsheet.WithTemplateSheet(cfg.TemplateSheet))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
