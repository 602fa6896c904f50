package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/api"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/config"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/database"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/queue"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/repository"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/s3storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	uploads := repository.NewUploadRepository(pool)
	users := repository.NewUserRepository(pool)

	store, err := s3storage.New(cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatalf("ensure bucket: %v", err)
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()
	enqueue := func(ctx context.Context, fileID string) error {
		return queue.EnqueueProcess(ctx, client, queue.ProcessPayload{FileID: fileID})
	}

	srv := api.New(cfg, uploads, users, store, enqueue)
	if err := srv.Run(ctx); err != nil {
		log.Printf("api stopped: %v", err)
		os.Exit(1)
	}
}
