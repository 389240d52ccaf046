// Command server runs the knowledge service's HTTP API: it wires the
// persistence backends, embedding client, LLM provider and reliability
// fabric into the retrieval/memory/session/indexer components and serves
// them behind the echo router in internal/httpapi.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"knowledgecore/internal/cache"
	"knowledgecore/internal/config"
	"knowledgecore/internal/httpapi"
	"knowledgecore/internal/indexer"
	"knowledgecore/internal/llm/providers"
	"knowledgecore/internal/memory"
	"knowledgecore/internal/observability"
	"knowledgecore/internal/persistence/databases"
	"knowledgecore/internal/rag/embedder"
	"knowledgecore/internal/reliability"
	"knowledgecore/internal/retrieval"
	"knowledgecore/internal/session"
)

// exit codes per spec.md §6: 0 on clean shutdown, 1 when the cache or
// vector store fails to initialize.
const (
	exitOK              = 0
	exitInitFailed      = 1
	shutdownGracePeriod = 10 * time.Second
	defaultListenAddr   = ":8080"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("load config")
		return exitInitFailed
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Obs.OTLP != "" {
		shutdownOTel, err := observability.InitOTel(ctx, cfg.Obs)
		if err != nil {
			log.Warn().Err(err).Msg("otel init failed, continuing without export")
		} else {
			defer func() { _ = shutdownOTel(context.Background()) }()
		}
	}

	dbManager, err := databases.NewManager(ctx, cfg.Databases)
	if err != nil {
		log.Error().Err(err).Msg("initialize persistence backends")
		return exitInitFailed
	}
	defer dbManager.Close()

	c := cache.New(cfg.Cache)
	defer c.Close()

	httpClient := observability.NewHTTPClient(&http.Client{Timeout: 60 * time.Second})
	emb := embedder.NewClient(cfg.Embedding, cfg.Project.VectorSize)
	provider, err := providers.Build(cfg, httpClient)
	if err != nil {
		log.Warn().Err(err).Msg("no LLM provider configured, /ask /explain /find-feature will be unavailable")
	}

	breakers := reliability.NewRegistryFromConfig(cfg.Reliability)

	memSvc := memory.New(dbManager.Vector, emb, breakers)
	sparseEnabled, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv("SPARSE_VECTORS_ENABLED")))
	idx := indexer.New(dbManager.Vector, dbManager.Graph, emb, breakers, sparseEnabled)
	engine := retrieval.New(dbManager.Vector, dbManager.Graph, emb, provider, breakers).WithMemory(memSvc)

	prefetch := session.NewPredictiveLoader(func(ctx context.Context, project, query string) error {
		_, err := engine.Search(ctx, retrieval.CollectionName(project, retrieval.SuffixCodebase), query, 10)
		return err
	}, c, 4)
	sessions := session.New(c, memSvc, prefetch)

	srv := httpapi.NewRouter(&httpapi.Server{
		Retrieval: engine,
		Memory:    memSvc,
		Session:   sessions,
		Indexer:   idx,
		Cache:     c,
		Vector:    dbManager.Vector,
		Breakers:  breakers,
	})

	addr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if addr == "" {
		addr = defaultListenAddr
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("knowledgecore listening")
		if err := srv.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed")
		return exitInitFailed
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return exitInitFailed
	}
	return exitOK
}
