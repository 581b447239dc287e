// Command semem runs the semantic memory substrate as a standalone
// process: it wires the Engine, runs the Memory Store's decay/promotion
// maintenance tick on a schedule, and shuts down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"semem"
	"semem/embedding"
	"semem/internal/config"
	"semem/internal/observability"
	"semem/llmprovider"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("semem: loading configuration failed: %v", err)
	}

	logger, logLevel, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("semem: initializing logger failed: %v", err)
	}
	defer logger.Sync()

	if overlayPath := os.Getenv("SEMEM_CONFIG_OVERLAY"); overlayPath != "" {
		watcher, err := config.NewWatcher(overlayPath, *cfg, logger)
		if err != nil {
			logger.Fatal("starting config overlay watcher failed", zap.Error(err))
		}
		defer watcher.Close()
		watcher.OnChange(func(reloaded *config.Config) {
			cfg = reloaded
			if lvl, lerr := zapLevel(reloaded.LogLevel); lerr == nil {
				logLevel.SetLevel(lvl)
			}
		})
		logger.Info("watching config overlay", zap.String("path", overlayPath))
	}

	chat, err := llmprovider.New(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_BASE_URL"))
	if err != nil {
		logger.Fatal("building chat provider failed", zap.Error(err))
	}
	embedder, err := llmprovider.NewEmbeddings(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_BASE_URL"), cfg.DefaultEmbeddingModel, 0)
	if err != nil {
		logger.Fatal("building embeddings provider failed", zap.Error(err))
	}

	engine, err := semem.New(cfg, logger, chat, []embedding.Provider{embedder}, baseURI(), "default")
	if err != nil {
		logger.Fatal("building engine failed", zap.Error(err))
	}

	logger.Info("starting semem", zap.String("storageBackend", string(cfg.StorageBackend)))

	go runMaintenanceLoop(ctx, engine, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down semem...")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	cancel()
	select {
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded")
	case <-time.After(2 * time.Second):
		logger.Info("stopped gracefully")
	}
}

// zapLevel parses a config log level string into a zapcore.Level.
func zapLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	err := l.UnmarshalText([]byte(level))
	return l, err
}

// baseURI is the namespace new Element URIs are minted under.
func baseURI() string {
	if v := os.Getenv("SEMEM_BASE_URI"); v != "" {
		return v
	}
	return "http://semem.local/"
}

// runMaintenanceLoop periodically runs the Memory Store's decay/promotion
// tick until ctx is cancelled.
func runMaintenanceLoop(ctx context.Context, engine *semem.Engine, logger *zap.Logger) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("maintenance loop shutting down")
			return
		case <-ticker.C:
			engine.RunMaintenance()
			logger.Debug("maintenance tick completed")
		}
	}
}
