package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/rpattn/reportvc/internal/api"
	"github.com/rpattn/reportvc/internal/config"
	"github.com/rpattn/reportvc/internal/db"
	"github.com/rpattn/reportvc/internal/export"
	"github.com/rpattn/reportvc/internal/ingestion"
	"github.com/rpattn/reportvc/internal/middleware"
	"github.com/rpattn/reportvc/internal/refinement"
	"github.com/rpattn/reportvc/internal/repository"
	"github.com/rpattn/reportvc/internal/versioning"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup the version store
	var versions repository.VersionRepository
	switch cfg.Storage.Driver {
	case "memory":
		log.Println("Using in-memory version store; data will not survive a restart")
		versions = repository.NewMemoryVersionRepository()
	default:
		conn, err := db.NewConnection(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer conn.Close()

		if err := db.RunMigrations(ctx, conn.Pool, cfg.Storage.MigrationsPath); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		versions = repository.NewVersionRepository(conn.Pool)
	}

	provider, err := refinement.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.Model)
	if err != nil {
		log.Fatalf("Failed to initialize generation provider: %v", err)
	}

	// Create services
	proposals := refinement.NewProposalCache(30 * time.Minute)
	versionService := versioning.NewService(versions)
	orchestrator := refinement.NewOrchestrator(versions, provider, proposals)
	coordinator := refinement.NewCoordinator(versions, proposals)
	exportService := export.NewService(versions)
	ingestService := ingestion.NewService(versions)

	// Mount routes
	mux := http.NewServeMux()
	api.NewHandler(versionService, orchestrator, coordinator).Register(mux)
	mux.Handle("GET /api/runs/{runID}/versions/{version}/export", export.NewHTTPHandler(exportService))
	mux.Handle("POST /api/ingest", ingestion.NewHTTPHandler(ingestService))

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	handler := corsHandler.Handler(
		middleware.LoggingMiddleware(
			middleware.ActorMiddleware(mux),
		),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting report version server on %s", cfg.Server.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
