// Patternd is the pattern learning engine daemon.
//
// It serves the learn/suggest/feedback API over HTTP for the code
// enhancement pipeline, persists patterns to a JSON snapshot, and
// optionally runs the learning loop that ingests analyzer reports.
//
// Usage:
//
//	# Start with defaults
//	patternd
//
//	# Configure via file and environment
//	patternd -config ~/.config/patternbank/config.yaml
//	PATTERNBANK_SERVER_PORT=8800 patternd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternbank/internal/config"
	httpapi "github.com/fyrsmithlabs/patternbank/internal/http"
	"github.com/fyrsmithlabs/patternbank/internal/learner"
	"github.com/fyrsmithlabs/patternbank/internal/learningloop"
	"github.com/fyrsmithlabs/patternbank/internal/logging"
	"github.com/fyrsmithlabs/patternbank/internal/patternstore"
	"github.com/fyrsmithlabs/patternbank/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("patternd %s (commit %s, built %s)\n", version, gitCommit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Shutdown complete")
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	provider, err := telemetry.Setup("patternbank", version)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	store, err := patternstore.New(patternstore.Config{
		SnapshotPath:     cfg.Store.SnapshotPath,
		IndexConsistency: patternstore.IndexConsistency(cfg.Store.IndexConsistency),
		RebuildInterval:  cfg.Store.RebuildInterval,
	}, logger)
	if err != nil {
		return fmt.Errorf("opening pattern store: %w", err)
	}

	eng, err := learner.New(learner.Config{
		LearningThreshold: cfg.Engine.LearningThreshold,
		FeedbackWeight:    cfg.Engine.FeedbackWeight,
		MinSimilarity:     cfg.Engine.MinSimilarity,
		MaxResults:        cfg.Engine.MaxResults,
		CacheSize:         cfg.Engine.CacheSize,
		PatternLifetime:   cfg.Engine.PatternLifetime,
		MinEffectiveness:  cfg.Engine.MinEffectiveness,
		MaxPatterns:       cfg.Engine.MaxPatterns,
		KeepMinimum:       cfg.Engine.KeepMinimum,
	}, store, logger)
	if err != nil {
		return fmt.Errorf("creating learner: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn("flushing store on shutdown failed", zap.Error(err))
		}
	}()

	metrics := telemetry.NewEngineMetrics(logger)

	server, err := httpapi.NewServer(eng, metrics, provider.Registry, logger, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	if cfg.Loop.Enabled {
		loop, err := learningloop.New(learningloop.Config{
			WatchDir:        cfg.Loop.WatchDir,
			CleanupInterval: cfg.Loop.CleanupInterval,
		}, eng, logger)
		if err != nil {
			return fmt.Errorf("creating learning loop: %w", err)
		}
		go func() {
			if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("learning loop stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
