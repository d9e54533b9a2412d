package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"go-task-tracker/internal/config"
	"go-task-tracker/internal/database"
	"go-task-tracker/internal/handler"
	"go-task-tracker/internal/middleware"
	"go-task-tracker/internal/queue"
	"go-task-tracker/internal/repository"
	"go-task-tracker/internal/router"
	"go-task-tracker/internal/service"
)

func main() {
	// A missing .env is fine in containerized deployments where the
	// environment is injected directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	taskRepo := repository.NewTaskRepo(db)
	idemRepo := repository.NewIdempotencyRepo(db)

	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	userHandler := handler.NewUserHandler(userRepo, taskRepo, tokenRepo)
	taskHandler := handler.NewTaskHandler(taskRepo, service.PublishTaskEvent)

	e := echo.New()
	e.HideBanner = true

	// Redis is optional: without it the limiter is a passthrough.  The
	// limiter is mounted per group, after JWTAuth on protected routes,
	// so user-scoped bucket keys resolve to the authenticated caller.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, rate limiting disabled")
	}
	rl := middleware.RateLimit(config.LoadRateLimitConfig(), rdb)

	router.RegisterHealth(e)
	router.RegisterAuth(e, authHandler, rl)
	router.RegisterUsers(e, userHandler, cfg.JWTSecret, rl)
	router.RegisterTasks(e, taskHandler, cfg.JWTSecret, idemRepo, cfg.IdempotencyTTL, taskRepo.GetByID, rl)

	// Background consumer mirrors task events into logs/tasks.log.
	go func() {
		if err := queue.StartTaskConsumer(); err != nil {
			log.Printf("task-consumer: %v", err)
		}
	}()

	// Expired idempotency records are invisible to lookups either way;
	// the sweeper just keeps the table from growing without bound.
	go sweepIdempotency(idemRepo)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

func sweepIdempotency(repo *repository.IdempotencyRepo) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for range t.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := repo.DeleteExpired(ctx)
		cancel()
		if err != nil {
			log.Printf("idempotency sweep: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("idempotency sweep: removed %d expired records", n)
		}
	}
}
