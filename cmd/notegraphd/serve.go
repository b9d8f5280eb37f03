package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notegraph/notegraph/internal/api"
	"github.com/notegraph/notegraph/internal/community"
	"github.com/notegraph/notegraph/internal/edges"
	"github.com/notegraph/notegraph/internal/embed"
	"github.com/notegraph/notegraph/internal/episodic"
	"github.com/notegraph/notegraph/internal/ingest"
	"github.com/notegraph/notegraph/internal/llm"
	"github.com/notegraph/notegraph/internal/prospective"
	"github.com/notegraph/notegraph/internal/store"
	"github.com/notegraph/notegraph/internal/synth"
	"github.com/notegraph/notegraph/internal/tags"
	"github.com/notegraph/notegraph/pkg/applog"
	"github.com/notegraph/notegraph/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the notegraphd HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := applog.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	notesDir := filepath.Join(cfg.Storage.DataDir, cfg.Storage.NotesDir)
	if err := os.MkdirAll(notesDir, 0o755); err != nil {
		return fmt.Errorf("create notes dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := store.NewSQLiteStoreWithDSN(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	tagSvc, err := tags.New(db)
	if err != nil {
		return fmt.Errorf("init tags: %w", err)
	}

	// One process-wide LLM client, shared by every component that issues
	// completions or embeddings - per spec.md §9's "singleton globals"
	// source pattern, constructed lazily here rather than as a package var.
	llmClient := llm.New(cfg.LLM, cfg.CircuitBreaker)
	embedSvc := embed.New(llmClient, cfg.Embedding)
	episodicExtractor := episodic.New(llmClient, tagSvc)
	prospectiveExtractor := prospective.New(llmClient)
	detector := community.New(llmClient)
	synthesizer := synth.New(llmClient, db)

	edgeThresholds := edges.Thresholds{
		Semantic:   cfg.Retrieval.SemanticThresh,
		TagJaccard: cfg.Retrieval.TagJaccardThresh,
	}
	orchestrator := ingest.New(db, episodicExtractor, prospectiveExtractor, tagSvc, embedSvc, notesDir, logger, edgeThresholds)

	server := api.New(db, orchestrator, tagSvc, embedSvc, detector, synthesizer, cfg, logger)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-sigCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
