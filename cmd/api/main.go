package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/cheers/cheers-api/internal/config"
	"github.com/cheers/cheers-api/internal/domain/admin"
	"github.com/cheers/cheers-api/internal/domain/cheer"
	"github.com/cheers/cheers-api/internal/domain/feed"
	"github.com/cheers/cheers-api/internal/domain/leaderboard"
	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/domain/shop"
	"github.com/cheers/cheers-api/internal/jobs"
	"github.com/cheers/cheers-api/internal/middleware"
	"github.com/cheers/cheers-api/internal/pkg/database"
	"github.com/cheers/cheers-api/internal/pkg/jwt"
	"github.com/cheers/cheers-api/internal/pkg/logger"
	"github.com/cheers/cheers-api/internal/pkg/metrics"
	pkgresponse "github.com/cheers/cheers-api/internal/pkg/response"
	"github.com/cheers/cheers-api/internal/scheduler"
	"github.com/cheers/cheers-api/internal/store/memstore"
)

const version = "1.0.0"

// stores groups the persistence backends the services run on.
type stores struct {
	ledger  ledger.Store
	cheers  cheer.Store
	shop    shop.Store
	catalog shop.Catalog
	audit   admin.AuditSink
}

// handlers groups everything the router mounts.
type handlers struct {
	ledger      *ledger.Handler
	cheers      *cheer.Handler
	leaderboard *leaderboard.Handler
	shop        *shop.Handler
	admin       *admin.Handler
	feed        *feed.Handler
}

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Cheers API")

	var db *sqlx.DB
	if cfg.DatabaseURL != "" {
		if cfg.AutoMigrate {
			if err := database.Migrate(cfg.DatabaseURL); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply migrations")
			}
		}

		var err error
		db, err = database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer database.ClosePostgres(db)
	} else if cfg.IsProduction() {
		log.Fatal().Msg("DATABASE_URL is required in production")
	}

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		// Redis only backs the leaderboard cache and feed fan-out.
		log.Warn().Err(err).Msg("Redis unavailable, continuing without it")
		rdb = nil
	}
	defer database.CloseRedis(rdb)

	st := newStores(cfg, db)

	// ---------- Services ----------
	ledgerService := ledger.NewService(st.ledger, int64(cfg.QuotaAllotment), time.Now)

	hub := feed.NewHub(rdb)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	cheerService := cheer.NewService(st.cheers, ledgerService, hub, int64(cfg.CheerMaxPoints))
	shopService := shop.NewService(st.shop, st.catalog, ledgerService)

	var cache leaderboard.Cache
	if rdb != nil {
		cache = leaderboard.NewRedisCache(rdb, cfg.LeaderboardCacheTTL)
	}
	leaderboardService := leaderboard.NewService(ledgerService, cache, time.Now)
	adminService := admin.NewService(ledgerService, shopService, leaderboardService, st.audit)

	// ---------- Handlers ----------
	h := handlers{
		ledger:      ledger.NewHandler(ledgerService),
		cheers:      cheer.NewHandler(cheerService),
		leaderboard: leaderboard.NewHandler(leaderboardService),
		shop:        shop.NewHandler(shopService),
		admin:       admin.NewHandler(adminService),
		feed:        feed.NewHandler(hub, cfg.AllowedOrigins),
	}

	jwtService := jwt.NewService(cfg.JWTSecret, time.Hour)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	limiter.StartCleanup(5*time.Minute, stopCleanup)

	r := newRouter(cfg, h, middleware.Auth(jwtService), limiter, healthCheck(db, rdb))

	// ---------- Scheduler ----------
	runner := jobs.NewRunner(ledgerService, leaderboardService, 30*time.Minute)
	sched, err := scheduler.New(runner, scheduler.Config{
		QuotaReset:         cfg.QuotaResetCron,
		LeaderboardRefresh: cfg.LeaderboardRefreshCron,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure scheduler")
	}
	sched.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// newStores picks Postgres when a pool is available, otherwise the in-memory
// store for local development.
func newStores(cfg *config.Config, db *sqlx.DB) stores {
	if db == nil {
		log.Warn().Msg("No database configured, using in-memory store; data is lost on restart")
		mem := memstore.New()
		return stores{
			ledger:  mem.Ledger(),
			cheers:  mem.Cheers(),
			shop:    mem.Shop(),
			catalog: shop.NewStaticCatalog(),
			audit:   admin.LogSink{},
		}
	}

	runner := database.NewTxRunner(db, cfg.DBTxRetries)
	st := stores{
		ledger:  ledger.NewRepository(runner),
		cheers:  cheer.NewRepository(runner),
		shop:    shop.NewRepository(runner),
		catalog: shop.NewCatalogRepository(db),
		audit:   admin.LogSink{},
	}
	if cfg.AuditDBEnabled {
		st.audit = admin.MultiSink{admin.LogSink{}, admin.NewAuditRepository(db)}
	}
	return st
}

func healthCheck(db *sqlx.DB, rdb *redis.Client) func(ctx context.Context) map[string]string {
	return func(ctx context.Context) map[string]string {
		status := map[string]string{"status": "ok", "version": version}
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				status["status"] = "degraded"
				status["database"] = "unreachable"
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				status["status"] = "degraded"
				status["redis"] = "unreachable"
			}
		}
		return status
	}
}

func newRouter(cfg *config.Config, h handlers, authMiddleware func(http.Handler) http.Handler, limiter *middleware.RateLimiter, health func(ctx context.Context) map[string]string) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(metrics.Middleware)

	// Browsers pass ?access_token= on the upgrade request.
	r.With(authMiddleware).Get("/ws/feed", h.feed.WebSocket)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := health(ctx)
		if status["status"] != "ok" {
			pkgresponse.JSON(w, http.StatusServiceUnavailable, status)
			return
		}
		pkgresponse.OK(w, status)
	})
	r.Handle("/metrics", metrics.Handler())

	// Ledger mutations are throttled per account after authentication.
	limited := func(next http.Handler) http.Handler {
		return authMiddleware(limiter.Mutations(next))
	}

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
				pkgresponse.OK(w, map[string]string{"message": "pong"})
			})

			r.Mount("/me", h.ledger.Routes(authMiddleware))
			r.Mount("/cheers", h.cheers.Routes(limited))
			r.Mount("/comments", h.cheers.CommentRoutes(authMiddleware))
			r.Mount("/leaderboard", h.leaderboard.Routes(authMiddleware))
			r.Mount("/shop", h.shop.Routes(limited))
		})

		r.Mount("/api/admin", h.admin.Routes(authMiddleware))
	})

	return r
}
