package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"estudai.com/study-platform/internal/api"
	"estudai.com/study-platform/internal/config"
	"estudai.com/study-platform/internal/embedding"
	"estudai.com/study-platform/internal/extract"
	"estudai.com/study-platform/internal/ingest"
	"estudai.com/study-platform/internal/llm"
	"estudai.com/study-platform/internal/rag"
	"estudai.com/study-platform/internal/store"
	"estudai.com/study-platform/internal/vectorindex"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(config.AppConfig.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer dbStore.Close()

	ctx := context.Background()

	// Initialize the LLM client and the model router
	gemini, err := llm.NewGeminiClient(ctx, config.AppConfig.GeminiAPIKey, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize LLM client")
	}
	defer gemini.Close()
	router := llm.NewRouter()

	// Initialize the vector index and make sure the collection exists
	index := vectorindex.NewGateway(vectorindex.Config{
		URL:        config.AppConfig.QdrantURL,
		APIKey:     config.AppConfig.QdrantAPIKey,
		Collection: config.AppConfig.QdrantCollection,
		Dimension:  config.AppConfig.EmbeddingDimension,
	}, log)
	if err := index.EnsureCollection(ctx); err != nil {
		// The service still starts; uploads will fail until the index is back.
		log.WithError(err).Warn("Vector index is not ready")
	}

	// Retrieval and generation pipeline
	embedder := embedding.NewGateway(gemini, 0, log)
	retriever := rag.NewRetriever(embedder, index, log)
	reranker := rag.NewReranker(gemini, router.ProfileFor(llm.TaskRerank), log)
	generator := rag.NewGenerator(gemini, router, log)
	pipeline := rag.NewPipeline(retriever, reranker, generator, config.AppConfig.MaxContextLength, log)

	// Structured extraction
	extractor := extract.NewExtractor(retriever, gemini, router, log)

	// Document ingestion
	var processor *ingest.ProcessorClient
	if config.AppConfig.ProcessorURL != "" {
		processor = ingest.NewProcessorClient(config.AppConfig.ProcessorURL, 0, log)
	} else {
		log.Info("No external processor configured, running local-only ingestion")
	}
	orchestrator := ingest.NewOrchestrator(dbStore, processor, ingest.PlainTextExtractor{}, embedder, index, extractor, ingest.Config{
		MaxUploadBytes: config.AppConfig.MaxUploadBytes,
		MaxChunkSize:   config.AppConfig.MaxChunkSize,
		AnalysisDelay:  time.Duration(config.AppConfig.AnalysisDelaySecs) * time.Second,
	}, log)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(dbStore, orchestrator, pipeline, extractor, index, processor, config.AppConfig.MaxUploadBytes, log)
	httpRouter := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      httpRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // uploads and LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.WithField("addr", serverAddr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatalf("Could not listen on %s", serverAddr)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("Server forced to shutdown")
	}

	log.Info("Server exiting gracefully")
}
