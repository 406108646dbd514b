package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"pantree/config"
	"pantree/cooking"
	"pantree/db"
	"pantree/live"
	"pantree/logger"
	"pantree/middleware"
	"pantree/mq"
	"pantree/ratelim"
	"pantree/rdx"
	"pantree/routes"
	"pantree/search"
)

const (
	searchPerMinute = 30
	searchBurst     = 10
)

// openStore picks the backend from the configuration.
func openStore(ctx context.Context, cfg *config.Config) (db.Store, error) {
	switch cfg.Storage() {
	case config.StoragePostgres:
		return db.NewPostgres(ctx, cfg.DatabaseURL)
	case config.StorageMongo:
		return db.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
	}
	if !cfg.Quiet {
		logger.Warn("No database configured; using in-memory storage. Data will be lost on exit.")
	}
	return db.NewMemoryStore(), nil
}

// searchProvider returns nil when no API key is configured.
func searchProvider(cfg *config.Config, cache *redis.Client) search.Provider {
	fdc, err := search.NewFoodDataCentral(cfg.FDCAPIKey, cfg.FDCBaseURL, nil)
	if err != nil {
		logger.Warn("food search disabled", zap.Error(err))
		return nil
	}
	if cache == nil {
		return fdc
	}
	return &search.Cached{Provider: fdc, Cache: cache, TTL: cfg.SearchCacheTTL}
}

// setupRouter builds the router with every route group.
func setupRouter(deps routes.Deps) *httprouter.Router {
	router := httprouter.New()
	routes.RoutesWrapper(router, deps)
	return router
}

// buildHandler applies middleware: request id → logging → recovery →
// security headers → CORS → router.
func buildHandler(router http.Handler, cfg *config.Config) http.Handler {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders:   []string{"Location", "X-Request-Id"},
		AllowCredentials: true,
	}).Handler(router)

	return middleware.RequestID(middleware.Logging(middleware.Recover(middleware.SecurityHeaders(corsHandler))))
}

func main() {
	cfg, foundEnv := config.Load()
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	if !foundEnv {
		logger.Info("No .env file found; using system environment")
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	store, err := openStore(startCtx, cfg)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	logger.Info("storage ready", zap.String("backend", string(cfg.Storage())))

	// live hub for websocket clients
	hub := live.NewHub()
	go hub.Run()

	// with redis every instance publishes there and relays back to its own
	// clients; without it events go straight to the local hub
	var events mq.Emitter = hub
	var redisClient *redis.Client
	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	if cfg.RedisAddr != "" {
		redisClient, err = rdx.Connect(startCtx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis unavailable; events stay local and search is uncached", zap.Error(err))
		} else {
			events = &mq.RedisEmitter{Client: redisClient}
			go mq.Relay(relayCtx, redisClient, hub)
		}
	}

	handlers := cooking.New(store, events)
	handlers.PublicURL = cfg.PublicURL
	if cfg.S3Bucket != "" {
		images, err := db.NewS3ImageStore(startCtx, cfg.S3Region, cfg.S3Bucket, store)
		if err != nil {
			logger.Fatal("failed to set up S3 image storage", zap.Error(err))
		}
		handlers.Images = images
		logger.Info("recipe images stored in S3", zap.String("bucket", cfg.S3Bucket))
	}

	// initialize rate limiter
	rateLimiter := ratelim.NewRateLimiter(searchPerMinute, searchBurst)

	router := setupRouter(routes.Deps{
		Cooking:     handlers,
		Search:      searchProvider(cfg, redisClient),
		Hub:         hub,
		Auth:        &middleware.Auth{Secret: cfg.JWTSecret},
		RateLimiter: rateLimiter,
	})

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           buildHandler(router, cfg),
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		logger.Info("Shutting down live hub...")
		stopRelay()
		hub.Stop()
		rateLimiter.Stop()
	})

	go func() {
		logger.Info("Server listening", zap.String("addr", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("ListenAndServe error", zap.Error(err))
		}
	}()

	// wait for interrupt or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutdown signal received; shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	if err := store.Close(ctx); err != nil {
		logger.Error("failed to close storage", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis", zap.Error(err))
		}
	}

	logger.Info("Server stopped cleanly")
}
