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

	"github.com/chronicle-engine/chronicle"
	"github.com/chronicle-engine/chronicle/export"
	"github.com/chronicle-engine/chronicle/internal/config"
	"github.com/chronicle-engine/chronicle/internal/db"
	"github.com/chronicle-engine/chronicle/internal/httpapi"
	"github.com/chronicle-engine/chronicle/internal/middleware"
	"github.com/chronicle-engine/chronicle/postgres"
	"github.com/chronicle-engine/chronicle/serializer"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations("./migrations", cfg.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	codec, err := serializer.ByName(cfg.Engine.Serializer)
	if err != nil {
		log.Fatalf("Failed to resolve serializer: %v", err)
	}
	chronicle.SetEnabled(cfg.Engine.Enabled)

	store := postgres.NewStore(conn.Pool)
	tracker := chronicle.NewTracker(store, chronicle.NewRegistry(), chronicle.WithSerializer(codec))
	exporter := export.NewService(tracker)
	handler := httpapi.NewHandler(tracker, store, exporter)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	mux := http.NewServeMux()
	mux.Handle("/", corsHandler.Handler(middleware.LoggingMiddleware(handler.Routes())))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting chronicle API on %s", cfg.Server.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

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
