package main

import (
	"context"
	"log"

	"qaforge/loader/internal"
	"qaforge/loader/service"
	"qaforge/model"
	"qaforge/store"
	"qaforge/types"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on process environment")
	}
	cfg := types.LoadConfig()

	ctx := context.Background()
	pool, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("error connecting to Postgres database: ", err)
	}

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error creating tables: ", err)
	}

	splitter, err := internal.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatal("error creating splitter: ", err)
	}

	embedder := model.NewOllamaEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel)
	loader := internal.NewFileLoader(cfg, embedder, splitter)

	service.New(pool, pool, loader).Run()

	log.Println("Closing database connection pool...")
	if err := pool.Close(); err != nil {
		log.Printf("error closing pool: %v\n", err)
	}
}
