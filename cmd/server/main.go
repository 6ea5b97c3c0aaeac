package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calewis/showtrack/internal/config"
	"github.com/calewis/showtrack/internal/database"
	"github.com/calewis/showtrack/internal/handlers"
	"github.com/calewis/showtrack/internal/middleware"
	"github.com/calewis/showtrack/internal/services"
	"github.com/calewis/showtrack/internal/store"
)

func main() {
	// Check for migrate command
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrations()
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := log.New(os.Stdout, "[showtrack] ", log.LstdFlags|log.Lshortfile)
	logger.Printf("Starting ShowTrack server in %s mode", cfg.Server.Env)

	// Initialize database connection
	db, err := database.New(database.Config{
		URL: cfg.Database.URL,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis connection
	redisClient, err := database.NewRedisClient(database.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       0,
		TLS:      cfg.Redis.TLS,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize session store
	sessionStore := database.NewSessionStore(redisClient, 7*24*time.Hour)

	// Initialize services
	userService := services.NewUserService(db.Pool)
	showService := services.NewShowService(db.Pool)
	catalogService := services.NewTVMazeService(services.TVMazeConfig{
		BaseURL:  cfg.Catalog.BaseURL,
		CacheTTL: cfg.Catalog.CacheTTL,
	})

	// One state store per signed-in user, released on logout
	storeManager := store.NewManager(showService, catalogService, logger)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(sessionStore, userService, "session", cfg.IsProduction())

	// Rate limiter (100 req/min in production, unlimited in local/dev)
	maxRequests := 1000
	if cfg.IsProduction() {
		maxRequests = 100
	}
	rateLimiter := middleware.NewRateLimiter(redisClient.Client, maxRequests, time.Minute, cfg.IsProduction(), logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(
		userService,
		sessionStore,
		authMiddleware,
		storeManager,
		handlers.AuthConfig{
			GoogleClientID:     cfg.OAuth.GoogleClientID,
			GoogleClientSecret: cfg.OAuth.GoogleClientSecret,
			GitHubClientID:     cfg.OAuth.GitHubClientID,
			GitHubClientSecret: cfg.OAuth.GitHubClientSecret,
			CallbackHost:       cfg.OAuth.CallbackHost,
		},
		logger,
	)
	showHandler := handlers.NewShowHandler(storeManager, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogService, logger)

	// Set up HTTP router
	mux := http.NewServeMux()

	// Auth routes (public)
	mux.HandleFunc("/login", authHandler.Login)
	mux.HandleFunc("/auth/google/login", authHandler.GoogleLogin)
	mux.HandleFunc("/auth/google/callback", authHandler.GoogleCallback)
	mux.HandleFunc("/auth/github/login", authHandler.GitHubLogin)
	mux.HandleFunc("/auth/github/callback", authHandler.GitHubCallback)
	mux.HandleFunc("/auth/logout", authHandler.Logout)

	// Library routes (protected with auth and rate limiting)
	protect := func(h http.HandlerFunc) http.Handler {
		return rateLimiter.Limit(authMiddleware.RequireAuth(h))
	}
	mux.Handle("GET /api/me", protect(authHandler.Me))
	mux.Handle("GET /api/shows", protect(showHandler.List))
	mux.Handle("POST /api/shows", protect(showHandler.Create))
	mux.Handle("DELETE /api/shows/{id}", protect(showHandler.Delete))
	mux.Handle("POST /api/shows/{id}/episodes/{episodeId}/toggle", protect(showHandler.ToggleEpisode))
	mux.Handle("POST /api/shows/{id}/episodes/{episodeId}/watch-until", protect(showHandler.WatchUntil))
	mux.Handle("PUT /api/shows/{id}/episodes/{episodeId}/note", protect(showHandler.UpdateNote))
	mux.Handle("PUT /api/shows/{id}/season", protect(showHandler.SetSeason))
	mux.Handle("POST /api/shows/{id}/watched", protect(showHandler.MarkWatched))

	// Catalog routes (protected with auth and rate limiting)
	mux.Handle("GET /api/catalog/search", protect(catalogHandler.Search))
	mux.Handle("GET /api/catalog/shows/{id}/episodes", protect(catalogHandler.Episodes))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		dbErr := db.Health(r.Context())
		redisErr := redisClient.Health(r.Context())

		if dbErr != nil || redisErr != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			dbStatus := "up"
			if dbErr != nil {
				dbStatus = "down"
			}
			redisStatus := "up"
			if redisErr != nil {
				redisStatus = "down"
			}
			fmt.Fprintf(w, `{"status":"unhealthy","database":"%s","redis":"%s"}`, dbStatus, redisStatus)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","database":"up","redis":"up"}`)
	})

	// Wrap with logging middleware
	handler := middleware.Logger(logger)(mux)

	// Create HTTP server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Printf("Server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Println("Server exited")
}

// runMigrations runs database migrations
func runMigrations() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(database.Config{
		URL: cfg.Database.URL,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	logger := log.New(os.Stdout, "[showtrack] ", log.LstdFlags)
	migrator := database.NewMigrator(db.Pool, logger)

	if err := migrator.Up(context.Background()); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	logger.Println("Migrations completed successfully")
}
