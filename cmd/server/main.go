package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/api/handlers"
	"github.com/maheshrc27/postpilot/internal/api/middleware"
	job "github.com/maheshrc27/postpilot/internal/jobs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/queue"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	postMediaRepo := repository.NewPostMediaRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	postingHistoryRepo := repository.NewPostingHistoryRepository(db)
	apiKeyRepository := repository.NewApiKeyRepository(db)

	clients := map[string]service.PostingClient{
		models.PlatformX:       service.NewXService(*cfg),
		models.PlatformYoutube: service.NewYoutubeService(*cfg),
	}

	r2Service := service.NewR2Service(*cfg)
	tokenService := service.NewTokenService(*cfg, socialAccountRepo, clients)
	retryPolicy := service.NewRetryPolicy(cfg.Scheduler)
	allocatorService := service.NewAllocatorService(db, postRepo, socialAccountRepo, cfg.Scheduler)
	dispatcherService := service.NewDispatcherService(postRepo, socialAccountRepo, postMediaRepo,
		mediaAssetRepo, postingHistoryRepo, tokenService, clients, r2Service, retryPolicy)
	settingsService := service.NewSettingsService(socialAccountRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepository)

	dueScanJob := job.NewDueScanJob(postRepo, dispatcherService, cfg.Scheduler)
	allocationJob := job.NewAllocationJob(postRepo, allocatorService)
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, tokenService)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	scheduler := handlers.NewSchedulerHandler(dueScanJob, postingHistoryRepo, client)
	api.Post("/scheduler/run", scheduler.RunNow)
	api.Get("/scheduler/status", scheduler.Status)
	api.Get("/history", scheduler.ListHistory)

	queueH := handlers.NewQueueHandler(allocatorService, socialAccountRepo, client)
	api.Post("/queue/allocate", queueH.Allocate)
	api.Post("/queue/reorder", queueH.Reorder)

	settings := handlers.NewSettingsHandler(settingsService, client)
	api.Get("/settings/policy", settings.GetPolicy)
	api.Post("/settings/policy", settings.UpdatePolicy)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	// cron jobs
	c := cron.New()
	c.AddFunc(cfg.Scheduler.TickSpec, dueScanJob.Run)
	c.AddFunc(cfg.Scheduler.AllocateSpec, allocationJob.Run)
	c.AddFunc(cfg.Scheduler.TokenRefreshSpec, refreshTokenJob.RefreshTokens)
	c.Start()

	// queue workers for manual triggers
	queueW := queue.NewQueue(dueScanJob, allocatorService)

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeScanDue, queueW.HandleScanDueTask)
		mux.HandleFunc(queue.TaskTypeAllocate, queueW.HandleAllocateTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
