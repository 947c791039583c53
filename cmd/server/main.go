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

	"github.com/rpattn/rollup/internal/config"
	"github.com/rpattn/rollup/internal/db"
	"github.com/rpattn/rollup/internal/export"
	"github.com/rpattn/rollup/internal/ingestion"
	"github.com/rpattn/rollup/internal/middleware"
	"github.com/rpattn/rollup/internal/repository"
	"github.com/rpattn/rollup/internal/rollup"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection; the rollup endpoints still work without
	// one, they just skip run persistence.
	var runRepo repository.RollupRunRepository
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Printf("Database unavailable, running without persistence: %v", err)
	} else {
		defer conn.Close()
		if err := db.RunMigrations(ctx, conn.Pool, "./migrations"); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		runRepo = repository.NewRollupRunRepository(conn.Pool)
	}

	// Create services
	ingestService := ingestion.NewService()
	engine := rollup.NewEngine()
	exportService := export.NewService(export.WithExportDirectory(cfg.ExportDir))

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	mux := http.NewServeMux()
	mux.Handle("/rollup/run", export.NewRunHandler(ingestService, engine, exportService, runRepo))
	mux.Handle("/rollup/runs", export.NewRunsHandler(runRepo))
	mux.Handle("/ingest/preview", ingestion.NewHTTPHandler(ingestService))

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      corsHandler.Handler(middleware.LoggingMiddleware(mux)),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting rollup server on %s", cfg.ServerAddr)
		log.Printf("Run endpoint available at http://localhost%s/rollup/run", cfg.ServerAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
