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

	"github.com/rpattn/versioned/internal/config"
	"github.com/rpattn/versioned/internal/contacts"
	"github.com/rpattn/versioned/internal/db"
	"github.com/rpattn/versioned/internal/domain"
	"github.com/rpattn/versioned/internal/export"
	"github.com/rpattn/versioned/internal/middleware"
	"github.com/rpattn/versioned/internal/queue"
	"github.com/rpattn/versioned/internal/repository"
	"github.com/rpattn/versioned/internal/versioning"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database, cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	versionStore := repository.NewVersionRepository(conn.Pool)
	contactRepo := repository.NewContactRepository(conn.Pool)

	// Optional Kafka producer for version-created events
	var producer *queue.Producer
	if cfg.Kafka.Enabled {
		producer = queue.NewProducer(cfg.Kafka.Broker, cfg.Kafka.Topic, cfg.Kafka.Username, cfg.Kafka.Password)
		defer func() {
			if err := producer.Close(); err != nil {
				log.Printf("Failed to close Kafka producer: %v", err)
			}
		}()
	}

	// Create the versioning engine
	registry := versioning.NewRegistry()
	engine := versioning.New(conn, versionStore,
		versioning.WithRegistry(registry),
		versioning.WithCommitHook(func(ctx context.Context, record domain.VersionRecord) {
			producer.PublishVersionCreated(ctx, record)
		}),
	)

	// Create services
	contactService := contacts.NewService(contactRepo, engine)
	contactService.RegisterLoader(registry)
	exportService := export.NewService(versionStore)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	mux := http.NewServeMux()
	mux.Handle("/contacts", contacts.NewHTTPHandler(contactService))
	mux.Handle("/contacts/", contacts.NewHTTPHandler(contactService))
	mux.Handle("/exports/", export.NewHTTPHandler(exportService))

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      corsHandler.Handler(middleware.LoggingMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting versioning server on %s", cfg.ServerAddr)

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
