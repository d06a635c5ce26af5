package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gonzs/internal"
	"gonzs/internal/api"
	"gonzs/internal/config"
	"gonzs/internal/container"
	apperrors "gonzs/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase connects to PostgreSQL; the container runs migrations
func initDatabase(appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to connect to database")
	}
	return db, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load application configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.DefaultLogger

	// Create dependency injection container
	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if appConfig.Database.Enabled() {
		db, err := initDatabase(appConfig)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		if err := appContainer.InitWithDatabase(context.Background(), db); err != nil {
			log.Fatalf("Failed to initialize container: %v", err)
		}
	} else {
		logger.Warn("DATABASE_URL not set, results are memoized in memory only")
	}

	gin.SetMode(appConfig.Server.GinMode)
	router := gin.Default()
	api.NewAssociationHandler(appContainer.Service, appConfig, logger).RegisterRoutes(router)

	server := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 Starting gonzs server on port %s", appConfig.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
