package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/config"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/database"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/ingest"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/repository"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/s3storage"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/worker"
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

	runner, err := ingest.NewRunner(uploads, users, store, cfg.SignaturePattern)
	if err != nil {
		log.Fatalf("init runner: %v", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Concurrency,
	})
	processor := worker.NewProcessor(runner)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(mux); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
