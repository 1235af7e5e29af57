package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	weaviateclient "github.com/weaviate/weaviate-go-client/v5/weaviate"

	"paperchat/features/chat"
	"paperchat/features/document"
	"paperchat/features/health"
	"paperchat/internal/adapter/gemini"
	"paperchat/internal/adapter/llamaparse"
	"paperchat/internal/adapter/localpdf"
	weaviatestore "paperchat/internal/adapter/weaviate"
	"paperchat/internal/blob"
	"paperchat/internal/config"
	"paperchat/internal/ingest"
	"paperchat/internal/middleware"
)

type App struct {
	Handler         http.Handler
	DocumentService *document.Service
	port            int
}

func New(
	cfg *config.Config,
	db *sql.DB,
	weaviateClient *weaviateclient.Client,
	embedder *gemini.Embedder,
	generator *gemini.Generator,
	blobs *blob.Store,
	logger *slog.Logger,
) (*App, error) {

	vecStore := weaviatestore.NewStore(weaviateClient, cfg.MinSimilarity)

	// Feature: Document
	docRepo := document.NewPostgresRepo(db)

	var parser ingest.PageParser
	if cfg.LlamaCloudAPIKey != "" {
		parser = ingest.NewAPIParser(llamaparse.NewClient(cfg.LlamaCloudAPIKey, cfg.LlamaCloudURL), blobs)
		logger.Info("page parser configured", "parser", "llamaparse")
	} else {
		parser = ingest.NewLocalParser(localpdf.NewParser(), blobs)
		logger.Info("page parser configured", "parser", "local")
	}

	ingestor := ingest.NewOrchestrator(parser, docRepo, embedder, vecStore, cfg.ChunkTargetChars, cfg.ChunkOverlapChars)

	docService := document.NewService(docRepo, blobs, vecStore, ingestor)
	docHandler := document.NewHandler(docService, cfg.MaxUploadSizeMB<<20)

	// Feature: Chat
	chatService := chat.NewService(embedder, vecStore, generator, cfg.ChatTopK, cfg.SuggestionTopK)
	chatHandler := chat.NewHandler(chatService)

	// Feature: Health
	healthHandler := health.NewHandler(db, blobs, vecStore)

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /upload", middleware.CorrelationID(middleware.CORS(docHandler.Upload)))
	mux.Handle("GET /pdfs", middleware.CorrelationID(middleware.CORS(docHandler.List)))
	mux.Handle("DELETE /pdfs/{id}", middleware.CorrelationID(middleware.CORS(docHandler.Delete)))
	mux.Handle("GET /doc/{id}/status", middleware.CorrelationID(middleware.CORS(docHandler.Status)))
	mux.Handle("GET /doc/{id}/file", middleware.CorrelationID(middleware.CORS(docHandler.File)))
	mux.Handle("GET /doc/{id}/suggestions", middleware.CorrelationID(middleware.CORS(chatHandler.Suggestions)))

	mux.Handle("POST /chat", middleware.CorrelationID(middleware.CORS(chatHandler.Chat)))

	mux.Handle("GET /files/", middleware.CorrelationID(middleware.CORS(
		http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.BlobDir))).ServeHTTP)))

	mux.Handle("GET /health", middleware.CorrelationID(middleware.CORS(healthHandler.Check)))

	return &App{
		Handler:         mux,
		DocumentService: docService,
		port:            cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
