package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codebridge-ai/codebridge/internal/chunker"
	"github.com/codebridge-ai/codebridge/internal/config"
	"github.com/codebridge-ai/codebridge/internal/db"
	dbRedis "github.com/codebridge-ai/codebridge/internal/db/redis"
	"github.com/codebridge-ai/codebridge/internal/domain"
	"github.com/codebridge-ai/codebridge/internal/index"
	indexFile "github.com/codebridge-ai/codebridge/internal/index/file"
	indexRedis "github.com/codebridge-ai/codebridge/internal/index/redis"
	"github.com/codebridge-ai/codebridge/internal/loader"
	logpkg "github.com/codebridge-ai/codebridge/internal/logger"
	"github.com/codebridge-ai/codebridge/internal/metrics"
	"github.com/codebridge-ai/codebridge/internal/prompt"
	"github.com/codebridge-ai/codebridge/internal/provider"
	"github.com/codebridge-ai/codebridge/internal/repository/embcache"
	chiTransport "github.com/codebridge-ai/codebridge/internal/transport/chi"
	openaiEmb "github.com/codebridge-ai/codebridge/internal/transport/openai"
	"github.com/codebridge-ai/codebridge/internal/tui"
	askuc "github.com/codebridge-ai/codebridge/internal/usecase/ask"
	healthuc "github.com/codebridge-ai/codebridge/internal/usecase/health"
	ingestuc "github.com/codebridge-ai/codebridge/internal/usecase/ingest"
	retrieveuc "github.com/codebridge-ai/codebridge/internal/usecase/retrieve"
	"github.com/codebridge-ai/codebridge/internal/version"
)

func main() {
	_ = godotenv.Load()

	var configPath string

	rootCmd := &cobra.Command{
		Use:     "codebridge",
		Short:   "Local RAG assistant for Swift and iOS development",
		Version: fmt.Sprintf("%s (%s, built %s)", version.Version, version.Commit, version.Date),
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")

	var docsDir string
	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Index the documentation corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(configPath, docsDir)
		},
	}
	setupCmd.Flags().StringVar(&docsDir, "docs", "", "Docs directory (overrides config)")

	var errorFile string
	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := ""
			if len(args) > 0 {
				question = args[0]
			}
			return runAsk(configPath, question, errorFile)
		},
	}
	askCmd.Flags().StringVar(&errorFile, "error-file", "", "Diagnose a compiler error read from this file")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(configPath)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	rootCmd.AddCommand(setupCmd, askCmd, chatCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the composed pipeline.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	store     db.Store // nil for the file backend
	index     index.Index
	embedder  domain.BatchingEmbedder
	generator domain.Generator
	ingest    *ingestuc.Service
	ask       *askuc.Service
	health    *healthuc.Service
}

func (a *app) close() {
	// The redis-backed index owns the store; closing it closes the client.
	if err := a.index.Close(); err != nil {
		a.logger.Warn("Failed to close index", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logpkg.New(cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	metrics.Register()

	var store db.Store
	var idx index.Index
	switch cfg.Index.Backend {
	case "redis":
		rs, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Index.Addrs,
			Password: cfg.Index.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		store = rs
		ri := indexRedis.New(store, cfg.Index.KeyPrefix)
		if err := ri.WaitForReady(context.Background(), 10*time.Second); err != nil {
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		idx = ri
	default:
		idx, err = indexFile.Open(cfg.Index.Path)
		if err != nil {
			return nil, fmt.Errorf("open index %s: %w", cfg.Index.Path, err)
		}
	}

	embedder := buildEmbedder(cfg, store, logger)

	generator, err := provider.New(&provider.Config{
		Kind:       cfg.Provider.Backend,
		BaseURL:    cfg.Provider.BaseURL,
		Model:      cfg.Provider.Model,
		Timeout:    time.Duration(cfg.Provider.TimeoutMs) * time.Millisecond,
		MaxRetries: cfg.Provider.MaxRetries,
		RetryDelay: time.Duration(cfg.Provider.RetryDelayMs) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}

	chk, err := chunker.New(cfg.Chunking.WindowSize, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	retriever, err := retrieveuc.New(embedder, idx, cfg.Retrieval.TopK, cfg.Retrieval.MinScore, logger)
	if err != nil {
		return nil, err
	}

	builder, err := prompt.New(cfg.Prompt.Budget)
	if err != nil {
		return nil, err
	}

	var modelCheck healthuc.ModelChecker
	if mc, ok := generator.(provider.ModelChecker); ok {
		modelCheck = mc
	}
	var embedCheck healthuc.EmbeddingChecker
	if hc, ok := embedder.(domain.HealthChecker); ok {
		embedCheck = hc
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		index:     idx,
		embedder:  embedder,
		generator: generator,
		ingest:    ingestuc.New(chk, embedder, idx, cfg.Ingest.Workers, logger),
		ask:       askuc.New(retriever, builder, generator, logger),
		health:    healthuc.New(idx, embedCheck, modelCheck),
	}, nil
}

// buildEmbedder assembles the decorator chain: OpenAI transport -> cache.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.BatchingEmbedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
		Logger:     logger,
	})

	if cfg.Embedding.Cache && store != nil {
		return embcache.New(base, store, cfg.Index.KeyPrefix, metrics.EmbeddingCacheTotal, logger)
	}
	return base
}

func runSetup(configPath, docsDir string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	dir := docsDir
	if dir == "" {
		dir = a.cfg.Docs.Dir
	}

	docs, err := loader.LoadDocuments(dir)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		a.logger.Warn("No documents found", zap.String("dir", dir))
		fmt.Printf("No .txt or .md documents found in %s\n", dir)
		return nil
	}

	a.logger.Info("Ingesting documents",
		zap.String("dir", dir), zap.Int("documents", len(docs)))

	report := a.ingest.IngestAll(context.Background(), docs)

	fmt.Printf("Indexed %d chunks from %d documents\n", report.Indexed(), len(report.Results))
	for _, f := range report.Failed() {
		fmt.Printf("  failed: %s: %v\n", f.DocID, f.Err)
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d documents failed", len(failed), len(report.Results))
	}
	return nil
}

func runAsk(configPath, question, errorFile string) error {
	if question == "" && errorFile == "" {
		return fmt.Errorf("provide a question or --error-file")
	}

	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	var answer domain.Answer
	if errorFile != "" {
		raw, err := os.ReadFile(errorFile)
		if err != nil {
			return fmt.Errorf("read error file: %w", err)
		}
		answer, err = a.ask.Diagnose(ctx, string(raw))
		if err != nil {
			return backendHint(err, a.cfg.Provider.Backend)
		}
	} else {
		answer, err = a.ask.Ask(ctx, question)
		if err != nil {
			return backendHint(err, a.cfg.Provider.Backend)
		}
	}

	fmt.Println(answer.Text)
	if len(answer.Chunks) > 0 {
		fmt.Println()
		seen := make(map[string]struct{})
		for _, c := range answer.Chunks {
			if _, ok := seen[c.SourceDocID]; ok {
				continue
			}
			seen[c.SourceDocID] = struct{}{}
			fmt.Printf("source: %s\n", c.SourceDocID)
		}
	}
	return nil
}

// backendHint appends actionable advice to backend availability errors.
func backendHint(err error, backend string) error {
	switch {
	case errors.Is(err, domain.ErrBackendUnreachable):
		return fmt.Errorf("%w; is your %s server running?", err, backend)
	case errors.Is(err, domain.ErrModelNotLoaded):
		return fmt.Errorf("%w; load the model in %s and retry", err, backend)
	}
	return err
}

func runChat(configPath string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	p := tea.NewProgram(tui.New(a.ask), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run chat: %w", err)
	}
	return nil
}

func runServe(configPath string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	logger := a.logger
	logger.Info("Starting codebridge API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.Int("http_port", a.cfg.HTTP.Port),
		zap.String("index_backend", a.cfg.Index.Backend),
		zap.String("provider", a.cfg.Provider.Backend),
	)

	server := chiTransport.NewServer(a.ask, a.ingest, a.health, a.cfg.Docs.Dir, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
