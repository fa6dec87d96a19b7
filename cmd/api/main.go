package main

import (
	"fmt"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/htams/backend/internal/config"
	"github.com/htams/backend/internal/database"
	"github.com/htams/backend/internal/database/migrations"
	"github.com/htams/backend/internal/events"
	"github.com/htams/backend/internal/jobs"
	"github.com/htams/backend/internal/queue"
	"github.com/htams/backend/internal/routes"
	"github.com/htams/backend/internal/services/wallet"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Initialize configuration
	cfg := config.LoadConfig()

	// Setup database connection
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := migrations.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Event publisher for the admin review live feed
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	publisher := events.NewRedisPublisher(redisClient)

	// Initialize router
	router := gin.Default()

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}))

	// Initialize job queue and the ledger reconciliation sweep
	jobQueue := queue.NewQueue(db)
	walletSvc := wallet.NewWalletService(db)
	reconciliation := jobs.RegisterAllJobHandlers(jobQueue, db, walletSvc)

	jobQueue.ProcessJobs()
	scheduler := jobs.StartScheduler(reconciliation)
	defer scheduler.Stop()

	// Register routes
	routes.RegisterRoutes(router, db, cfg, publisher)

	// Start server
	fmt.Printf("HTAMS API server running on port %s\n", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
