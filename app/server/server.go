package server

import (
	"context"
	"log"
	"log/slog"

	"qaforge/app/api"
	"qaforge/dedup"
	"qaforge/gen"
	"qaforge/model"
	"qaforge/store"
	"qaforge/types"

	"github.com/gofiber/fiber/v2"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
}

type Server struct {
	cfg    types.Config
	logger *slog.Logger
}

func NewServer(cfg types.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

func (s *Server) Stop() {
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()
	pool, err := store.NewPostgresStore(ctx, s.cfg.PostgresDSN)
	if err != nil {
		log.Fatal("error to connect to Postgres database", err)
		return
	}

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error to create tables", err)
		return
	}

	generator, err := model.NewGenerator(s.cfg)
	if err != nil {
		log.Fatal("error to create generator", err)
		return
	}
	embedder := model.NewOllamaEmbedder(s.cfg.EmbeddingURL, s.cfg.EmbeddingModel)

	reconciler := dedup.NewReconciler(pool, 0)
	orch := gen.NewOrchestrator(pool, pool, pool, generator, reconciler)

	var (
		app              = fiber.New(config)
		checkHandler     = api.NewCheckHandler()
		generateHandler  = api.NewGenerateHandler(orch)
		reconcileHandler = api.NewReconcileHandler(func(threshold int) api.CaseReconciler {
			return dedup.NewReconciler(pool, threshold)
		}, pool)
		searchHandler   = api.NewSearchHandler(pool, pool, embedder)
		documentHandler = api.NewDocumentHandler(s.cfg.SourceDir)

		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1.Post("/generate", generateHandler.HandleGenerate)
	apiv1.Get("/generate/status", generateHandler.HandleStatus)
	apiv1.Post("/reconcile", reconcileHandler.HandleReconcile)
	apiv1.Get("/projects/:id/cases", reconcileHandler.HandleListCases)
	apiv1.Post("/search", searchHandler.HandleSearch)
	apiv1.Post("/documents", documentHandler.HandleUpload)

	err = app.Listen(s.cfg.ServerAddr)
	if err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}
