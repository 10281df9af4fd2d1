// Package main is the entry point for the ProposePress server.
// It loads configuration, connects to services, wires the proposed
// publish date feature into the save pipeline, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"proposepress/internal/assets"
	"proposepress/internal/cache"
	"proposepress/internal/config"
	"proposepress/internal/database"
	"proposepress/internal/engine"
	"proposepress/internal/handlers"
	"proposepress/internal/lifecycle"
	"proposepress/internal/meta"
	"proposepress/internal/middleware"
	"proposepress/internal/models"
	"proposepress/internal/proposal"
	"proposepress/internal/render"
	"proposepress/internal/router"
	"proposepress/internal/session"
	"proposepress/internal/sitetime"
	"proposepress/internal/store"
)

func main() {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: JSON in production, text in development.
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	if cfg.IsDev() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"timezone", cfg.SiteTimezone,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if _, err := database.Migrate(ctx, db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (Redis-compatible cache + session store).
	valkeyClient, err := cache.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// In non-development environments, mark cookies as Secure (HTTPS-only).
	secureCookies := !cfg.IsDev()
	sessionStore := session.NewStore(valkeyClient, secureCookies)

	// In dev mode, admin templates load assets from CDN; in production they
	// use the compiled files embedded in the binary.
	renderer, err := render.New(cfg.IsDev())
	if err != nil {
		slog.Error("failed to initialize template renderer", "error", err)
		os.Exit(1)
	}
	renderer.UseFlashes(sessionStore)

	// Data stores.
	userStore := store.NewUserStore(db)
	contentStore := store.NewContentStore(db)
	metaStore := store.NewMetaStore(db)

	// Content lifecycle: statuses, site clock, hooks and the save pipeline.
	statuses := models.NewStatusRegistry()
	zone := sitetime.NewZone(cfg.Location())
	hooks := lifecycle.NewHooks()
	metaRegistry := meta.NewRegistry(metaStore)
	pipeline := lifecycle.NewPipeline(contentStore, hooks, statuses, zone)

	// Proposed publish date feature.
	proposals := proposal.New(proposal.Config{
		Types:         contentTypes(cfg.ProposedDateTypes),
		PanelStatuses: contentStatuses(cfg.ProposedDatePanelStatuses),
		DateFormat:    cfg.DateFormat,
		TimeFormat:    cfg.TimeFormat,
	}, proposal.Options{}, hooks, metaRegistry, statuses, zone, proposal.NewMetrics(prometheus.DefaultRegisterer))
	proposals.Register(metaRegistry)

	slog.Info("proposed publish date enabled",
		"types", proposals.SupportedTypes(),
		"panel_statuses", proposals.PanelStatuses(),
	)

	// Public rendering and the L2 page cache (full-page HTML in Valkey).
	eng, err := engine.New(engine.Config{DateFormat: cfg.DateFormat, TimeFormat: cfg.TimeFormat}, hooks, zone)
	if err != nil {
		slog.Error("failed to initialize page engine", "error", err)
		os.Exit(1)
	}
	pageCache := cache.NewPageCache(valkeyClient, cache.DefaultPageTTL,
		cache.Namespace(cfg.DateFormat, cfg.TimeFormat, zone.Location().String()))
	pageCache.PurgeStale(ctx)

	// Saves made outside the admin handlers, such as scheduled publishing,
	// must drop stale public pages too.
	hooks.AddAfterSave(func(ctx context.Context, id uuid.UUID) {
		if c, err := contentStore.FindByID(id); err == nil && c != nil {
			pageCache.Invalidate(ctx, c.Slug)
			return
		}
		pageCache.Invalidate(ctx)
	})

	// Editor bundle manifest, reloaded when the front-end build rewrites it.
	manifests := assets.NewManifests()
	if err := manifests.Watch(ctx, cfg.AssetManifest); err != nil {
		slog.Warn("asset manifest not watched", "path", cfg.AssetManifest, "error", err)
	}

	// Scheduled publishing of "future" content.
	publisher := lifecycle.NewPublisher(pipeline, contentStore, cfg.PublishSchedule)
	if err := publisher.Start(ctx); err != nil {
		slog.Error("failed to start scheduled publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Stop()

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRatePerMin, time.Minute)
	defer loginLimiter.Stop()

	// Create handler groups with their dependencies.
	h := router.Handlers{
		Admin: handlers.NewAdmin(renderer, contentStore, userStore, pipeline, statuses, metaRegistry, proposals, zone,
			manifests, handlers.AssetConfig{ManifestPath: cfg.AssetManifest, StaticURL: cfg.StaticURL}, pageCache, sessionStore),
		API:    handlers.NewAPI(contentStore, metaRegistry),
		Auth:   handlers.NewAuth(renderer, sessionStore, userStore),
		Public: handlers.NewPublic(eng, contentStore, pageCache),
	}

	r := router.New(sessionStore, h, router.Options{
		SecureCookies: secureCookies,
		LoginLimiter:  loginLimiter,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Stop the watcher and the scheduler before draining requests.
	stop()

	// Give active requests up to 30 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func contentTypes(names []string) []models.ContentType {
	out := make([]models.ContentType, 0, len(names))
	for _, n := range names {
		out = append(out, models.ContentType(n))
	}
	return out
}

func contentStatuses(names []string) []models.ContentStatus {
	out := make([]models.ContentStatus, 0, len(names))
	for _, n := range names {
		out = append(out, models.ContentStatus(n))
	}
	return out
}
