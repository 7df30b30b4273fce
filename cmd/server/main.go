package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/robfig/cron/v3"

	embedhandlers "Embedkit/internal/api/handlers/embed"
	"Embedkit/internal/api/middleware"
	"Embedkit/internal/api/routes"
	"Embedkit/internal/config"
	"Embedkit/internal/core/cache"
	"Embedkit/internal/core/embed"
	"Embedkit/internal/core/fetch"
	"Embedkit/internal/core/imageprobe"
	"Embedkit/internal/core/meta"
	"Embedkit/internal/core/telemetry"
	"Embedkit/internal/core/uristatus"
	"Embedkit/internal/core/whitelist"
	"Embedkit/internal/db/migrations"
	postgresRepo "Embedkit/internal/db/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	engine := fetch.NewEngine(
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithTimeout(cfg.ResponseTimeout.Duration),
		fetch.WithMaxRedirects(cfg.MaxRedirects),
	)

	// In-memory cache, optionally backed by Postgres
	memory, err := cache.NewMemoryStore(cfg.CacheMaxEntries)
	if err != nil {
		log.Fatal("Failed to create memory cache:", err)
	}
	if cfg.CacheCleanupInterval.Duration > 0 {
		stopCleanup := memory.StartCleanupJob(cfg.CacheCleanupInterval.Duration)
		defer stopCleanup()
	}

	var store cache.Store = memory
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := openDatabase(dbURL)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()

		repo := postgresRepo.NewCacheRepo(db)
		store = cache.NewTiered(memory, repo, cfg.PageCacheTTL.Duration)

		stopSweep, err := startCacheSweep(repo, cfg.CacheCleanupInterval.Duration)
		if err != nil {
			log.Fatal(err)
		}
		defer stopSweep()
	}
	c := cache.New(store, cache.WithDefaultTTL(cfg.CacheTTL.Duration))

	// Whitelist
	wl := whitelist.NewStore()
	if src := whitelistSource(cfg, engine); src != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := wl.Reload(ctx, src); err != nil {
			// Serve with default grants until the next reload succeeds.
			log.Printf("Warning: failed to load whitelist: %v", err)
		} else {
			log.Printf("Whitelist loaded: %d domains", wl.Len())
		}
		cancel()

		if cfg.WhitelistReloadPeriod.Duration > 0 {
			stopReload, err := wl.StartReloadJob(src, "@every "+cfg.WhitelistReloadPeriod.Duration.String())
			if err != nil {
				log.Fatal("Failed to start whitelist reload:", err)
			}
			defer stopReload()
		}
	}

	// Components
	loader, err := meta.NewLoader(engine,
		meta.WithCache(c),
		meta.WithPageTTL(cfg.PageCacheTTL.Duration),
		meta.WithOEmbedTTL(cfg.CacheTTL.Duration),
		meta.WithMaxPageBytes(cfg.MaxPageBytes()),
	)
	if err != nil {
		log.Fatal("Failed to create meta loader:", err)
	}

	prober := imageprobe.NewProber(engine,
		imageprobe.WithCache(c, cfg.CacheTTL.Duration),
		imageprobe.WithTimeout(cfg.ResponseTimeout.Duration),
	)
	checker := uristatus.NewChecker(engine,
		uristatus.WithCache(c, cfg.CacheTTL.Duration),
		uristatus.WithTimeout(cfg.ResponseTimeout.Duration),
	)
	reporter := telemetry.NewReporter(cfg.WhitelistLogURL, engine,
		telemetry.WithPerMinute(cfg.TelemetryPerMinute),
		telemetry.WithTimeout(cfg.ResponseTimeout.Duration),
	)
	if reporter.Enabled() {
		log.Printf("Telemetry enabled: %s (%d/min)", cfg.WhitelistLogURL, cfg.TelemetryPerMinute)
	}

	serviceOpts := []embed.ServiceOption{
		embed.WithWhitelist(wl),
		embed.WithReporter(reporter),
	}
	if cfg.ProbeImages {
		serviceOpts = append(serviceOpts, embed.WithImageProber(prober))
	}
	embedService, err := embed.NewService(loader, engine, serviceOpts...)
	if err != nil {
		log.Fatal("Failed to create embed service:", err)
	}

	handler := embedhandlers.NewHandler(embedService, prober, checker,
		embedhandlers.WithWhitelistInfo(wl),
		embedhandlers.WithProviderStats(loader.ProviderStats),
	)

	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	routes.RegisterHealthRoutes(r, handler)

	// Rate limiting: requests per minute per IP, extraction routes only
	rateLimiter := middleware.NewRateLimiter(envInt("RATE_LIMIT_PER_MINUTE", 100), 1*time.Minute)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		routes.RegisterEmbedRoutes(r, handler)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8061"
	}

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		fmt.Printf("Embedkit %s starting on port %s\n", config.Version, port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed:", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Warning: graceful shutdown failed: %v", err)
	}
	reporter.Wait()
}

func openDatabase(dbURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("Connected to cache database")

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("Migrations completed successfully")
	return db, nil
}

// startCacheSweep deletes expired Postgres cache rows on a schedule.
func startCacheSweep(repo *postgresRepo.CacheRepo, interval time.Duration) (func(), error) {
	if interval <= 0 {
		interval = time.Hour
	}
	c := cron.New()
	_, err := c.AddFunc("@every "+interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := repo.Cleanup(ctx)
		if err != nil {
			slog.Error("[CACHE] cleanup failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("[CACHE] expired rows removed", "count", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule cache cleanup: %w", err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}

func whitelistSource(cfg config.Config, engine *fetch.Engine) whitelist.Source {
	switch {
	case cfg.WhitelistFile != "":
		return whitelist.FileSource{Path: cfg.WhitelistFile}
	case cfg.WhitelistURL != "":
		return whitelist.URLSource{URL: cfg.WhitelistURL, Fetcher: engine}
	default:
		log.Println("No whitelist configured; default grants apply")
		return nil
	}
}

func envInt(name string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(name)); err == nil && n > 0 {
		return n
	}
	return def
}
