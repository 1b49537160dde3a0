package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vmunix/pulsarr/internal/acquire"
	v1 "github.com/vmunix/pulsarr/internal/api/v1"
	"github.com/vmunix/pulsarr/internal/approval"
	"github.com/vmunix/pulsarr/internal/config"
	"github.com/vmunix/pulsarr/internal/events"
	"github.com/vmunix/pulsarr/internal/lookup"
	"github.com/vmunix/pulsarr/internal/migrations"
	"github.com/vmunix/pulsarr/internal/quota"
	"github.com/vmunix/pulsarr/internal/router"
	"github.com/vmunix/pulsarr/pkg/tvdb"
)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 200 { // Only capture first WriteHeader call
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func runServer(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	// Ensure database directory exists
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Database.Path+"?_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// === Stores ===
	ruleStore := router.NewStore(db)
	quotaStore := quota.NewStore(db)
	approvalStore := approval.NewStore(db)

	// Declared instances are the routing targets; rules reference them by id.
	if err := syncInstances(ruleStore, cfg.Instances); err != nil {
		return fmt.Errorf("sync instances: %w", err)
	}

	// === Events ===
	eventLog := events.NewEventLog(db)
	bus := events.NewBus(eventLog, logger)
	defer func() { _ = bus.Close() }()

	// === Lookups (optional - nil if no provider configured) ===
	var lookups *lookup.Service
	var source router.MetadataSource
	if cfg.Lookup.TMDBAPIKey != "" || cfg.Lookup.TVDBAPIKey != "" {
		var movies *lookup.TMDBClient
		if cfg.Lookup.TMDBAPIKey != "" {
			movies = lookup.NewTMDBClient(cfg.Lookup.TMDBAPIKey)
		}
		var series *tvdb.Client
		if cfg.Lookup.TVDBAPIKey != "" {
			series = tvdb.New(cfg.Lookup.TVDBAPIKey)
		}
		lookups = lookup.NewService(movies, series, logger, lookup.WithCacheTTL(cfg.Lookup.CacheTTL))
		source = lookups
	}

	// === Engine ===
	registry, _ := router.NewDefaultRegistry(ruleStore, source, logger)
	resolver := router.NewResolver(registry, ruleStore, logger)
	tracker := quota.NewTracker(quotaStore, logger)
	acquirer := acquire.NewForwarder(ruleStore, logger)
	gate := approval.NewGate(tracker, approvalStore, acquirer, bus, logger,
		approval.WithExpiry(cfg.Approvals.ExpireAfter))
	manager := approval.NewManager(approvalStore, tracker, acquirer, bus, logger)

	// === Background sweeps ===
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runExpirySweep(ctx, manager, cfg.Approvals.SweepInterval, logger.With("component", "sweep"))
	go runMaintenance(ctx, quotaStore, eventLog, cfg, logger.With("component", "maintenance"))

	// === HTTP ===
	mux := http.NewServeMux()
	apiV1 := v1.New(v1.Deps{
		Rules:      ruleStore,
		Registry:   registry,
		Resolver:   resolver,
		Gate:       gate,
		Approvals:  manager,
		Quotas:     tracker,
		QuotaStore: quotaStore,
		Lookups:    lookups,
		EventLog:   eventLog,
		Version:    version,
	}, logger)
	apiV1.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("server starting",
		"addr", addr,
		"database", cfg.Database.Path,
		"instances", len(cfg.Instances),
		"lookups", lookups != nil,
		"log_level", cfg.Server.LogLevel,
	)

	srv := &http.Server{Addr: addr, Handler: logRequests(mux, logger)}

	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())

	// Cancel background sweeps
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// syncInstances upserts every declared instance so rules can reference them.
// Instances removed from the config are left in place but can be disabled.
func syncInstances(store *router.Store, declared []config.InstanceConfig) error {
	for _, ic := range declared {
		inst := &router.Instance{
			Name:           ic.Name,
			Type:           router.TargetType(ic.Type),
			BaseURL:        ic.URL,
			APIKey:         ic.APIKey,
			Enabled:        !ic.Disabled,
			Default:        ic.Default,
			QualityProfile: ic.QualityProfile,
			RootFolder:     ic.RootFolder,
			Tags:           ic.Tags,
		}
		if err := store.UpsertInstance(inst); err != nil {
			return fmt.Errorf("instance %q: %w", ic.Name, err)
		}
	}
	return nil
}

// runExpirySweep periodically flips overdue pending approvals to expired.
func runExpirySweep(ctx context.Context, manager *approval.Manager, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("expiry sweep started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			log.Info("expiry sweep stopped")
			return
		case <-ticker.C:
			if _, err := manager.ExpireSweep(ctx); err != nil {
				log.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

// runMaintenance prunes aged quota usage rows and event log entries.
func runMaintenance(ctx context.Context, quotaStore *quota.Store, eventLog *events.EventLog, cfg *config.Config, log *slog.Logger) {
	ticker := time.NewTicker(cfg.Quota.MaintenanceInterval)
	defer ticker.Stop()

	log.Info("maintenance started", "interval", cfg.Quota.MaintenanceInterval.String())
	for {
		select {
		case <-ctx.Done():
			log.Info("maintenance stopped")
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-cfg.Quota.UsageRetention)
			if n, err := quotaStore.PruneUsage(cutoff); err != nil {
				log.Error("usage prune failed", "error", err)
			} else if n > 0 {
				log.Info("pruned usage rows", "count", n)
			}
			if n, err := eventLog.Prune(cfg.Events.Retention); err != nil {
				log.Error("event prune failed", "error", err)
			} else if n > 0 {
				log.Info("pruned events", "count", n)
			}
		}
	}
}
