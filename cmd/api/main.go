package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"referral-service/internal/accounts"
	"referral-service/internal/cache"
	"referral-service/internal/config"
	"referral-service/internal/email"
	"referral-service/internal/events"
	"referral-service/internal/features"
	"referral-service/internal/handler"
	"referral-service/internal/middleware"
	"referral-service/internal/ratelimit"
	"referral-service/internal/service"
	"referral-service/internal/store"
	"referral-service/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Tracing
	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "referral-service",
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer tracing.Shutdown(context.Background())

	// Persistence
	db, err := store.New(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	creator := accounts.NewPostgresCreator(db.DB())

	// Feature flags
	flags := features.NewManager()
	flags.Register(features.FeatureEmailEnabled, cfg.Email.Enabled, "Send verification emails via SES")
	flags.Register(features.FeatureRedisRateLimit, cfg.Redis.Enabled, "Share rate limit windows via Redis")
	flags.Register(features.FeatureGroupCacheEnabled, cfg.Redis.Enabled, "Cache group lookups")
	flags.Register(features.FeatureEventHooksEnabled, true, "Publish referral lifecycle events")

	// Domain rate limiter
	window := time.Duration(cfg.ReferralRate.WindowMinutes) * time.Minute
	var limiter ratelimit.Limiter
	if flags.IsEnabled(features.FeatureRedisRateLimit) {
		redisLimiter, err := ratelimit.NewRedisLimiter(
			cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cfg.ReferralRate.MaxAttempts, window,
		)
		if err != nil {
			log.Fatalf("Failed to initialize Redis rate limiter: %v", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.ReferralRate.MaxAttempts, window)
	}

	// Group cache
	var groupCache cache.Cache
	if flags.IsEnabled(features.FeatureGroupCacheEnabled) {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("Warning: Redis cache unavailable, using in-memory cache: %v", err)
			groupCache = cache.NewMemoryCache()
		} else {
			defer redisCache.Close()
			groupCache = redisCache
		}
	} else {
		groupCache = cache.NewMemoryCache()
	}

	// Email verifier
	var verifier email.Verifier
	if flags.IsEnabled(features.FeatureEmailEnabled) && cfg.Email.AWSAccessKey != "" {
		verifier, err = email.NewSESVerifier(
			context.Background(),
			cfg.Email.AWSAccessKey, cfg.Email.AWSSecretKey,
			cfg.Email.AWSRegion, cfg.Email.FromAddress,
			logger,
		)
		if err != nil {
			log.Fatalf("Failed to initialize SES client: %v", err)
		}
	} else {
		verifier = email.NewLogVerifier(logger)
	}

	// Events
	eventManager := events.NewManager(flags.IsEnabled(features.FeatureEventHooksEnabled))
	defer eventManager.Shutdown()
	eventManager.Subscribe(events.EventReferralCreated, func(ctx context.Context, ev events.Event) error {
		if data, ok := ev.Data.(events.ReferralCreatedData); ok {
			logger.Info("referral created",
				zap.String("referrer_id", data.ReferrerID),
				zap.String("user_id", data.UserID),
				zap.String("group_id", data.GroupID),
			)
		}
		return nil
	})
	eventManager.Subscribe(events.EventReferralFailed, func(ctx context.Context, ev events.Event) error {
		if data, ok := ev.Data.(events.ReferralFailedData); ok {
			logger.Warn("referral failed",
				zap.String("referrer_id", data.ReferrerID),
				zap.String("type", string(data.ErrorType)),
				zap.String("message", data.Message),
			)
		}
		return nil
	})

	// Service and handlers
	svc := service.NewService(db, creator, verifier, limiter, logger, service.Options{
		GroupCache: groupCache,
		Events:     eventManager,
	})
	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
	})

	// Router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	if cfg.APIRate.Enabled {
		apiLimiter := middleware.NewRateLimiter(cfg.APIRate.Rate, time.Duration(cfg.APIRate.Window)*time.Second)
		defer apiLimiter.Stop()
		r.Use(middleware.RateLimit(apiLimiter))
	}
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing())
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/referrals", func(r chi.Router) {
		r.Post("/", h.CreateReferral)
		r.Post("/batch", h.CreateBatchReferrals)
		r.Get("/statistics", h.GetReferralStatistics)
	})

	r.Route("/groups/{group_id}/referrals", func(r chi.Router) {
		r.Post("/", h.CreateGroupReferral)
		r.Get("/", h.GetReferralsForGroup)
	})

	r.Get("/users/{user_id}/referrals", h.GetReferralsByUser)
	r.Post("/admin/rate-limits/clear", h.ClearRateLimits)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Printf("Referral rate limit: %d per %d minutes", cfg.ReferralRate.MaxAttempts, cfg.ReferralRate.WindowMinutes)

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
