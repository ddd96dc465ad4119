// Package learningloop feeds analyzer output back into the pattern store.
//
// The controller watches a directory for issue reports written by the
// project-quality analyzers, converts each fixed issue into an
// issue-prevention pattern, and hands it to the learner. It also drives
// the periodic cleanup schedule.
package learningloop

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternbank/internal/learner"
	"github.com/fyrsmithlabs/patternbank/internal/pattern"
)

// Issue is one analyzer finding with its applied fix.
type Issue struct {
	Category    string  `json:"category"`
	Description string  `json:"description"`
	File        string  `json:"file"`
	Severity    string  `json:"severity"`
	BeforeCode  string  `json:"before_code"`
	AfterCode   string  `json:"after_code"`
	Improvement float64 `json:"improvement"`
}

// Report is the analyzer output file format.
type Report struct {
	Language  string    `json:"language"`
	Framework string    `json:"framework,omitempty"`
	Issues    []Issue   `json:"issues"`
	CreatedAt time.Time `json:"created_at"`
}

// Config holds controller settings.
type Config struct {
	// WatchDir is the directory analyzer reports land in.
	WatchDir string

	// CleanupInterval schedules periodic store cleanup. Zero disables.
	CleanupInterval time.Duration
}

// Controller ingests analyzer reports and schedules cleanup.
type Controller struct {
	cfg     Config
	learner *learner.Learner
	logger  *zap.Logger
}

// New creates a controller.
func New(cfg Config, l *learner.Learner, logger *zap.Logger) (*Controller, error) {
	if l == nil {
		return nil, fmt.Errorf("learner cannot be nil")
	}
	if cfg.WatchDir == "" {
		return nil, fmt.Errorf("watch directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{cfg: cfg, learner: l, logger: logger}, nil
}

// Run watches the report directory until the context is canceled. Reports
// already present at startup are ingested first.
func (c *Controller) Run(ctx context.Context) error {
	if err := os.MkdirAll(c.cfg.WatchDir, 0o755); err != nil {
		return fmt.Errorf("creating watch directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(c.cfg.WatchDir); err != nil {
		return fmt.Errorf("watching %s: %w", c.cfg.WatchDir, err)
	}

	c.ingestExisting()

	var cleanupCh <-chan time.Time
	if c.cfg.CleanupInterval > 0 {
		ticker := time.NewTicker(c.cfg.CleanupInterval)
		defer ticker.Stop()
		cleanupCh = ticker.C
	}

	c.logger.Info("learning loop started",
		zap.String("watch_dir", c.cfg.WatchDir),
		zap.Duration("cleanup_interval", c.cfg.CleanupInterval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			c.ingestFile(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watcher error", zap.Error(err))

		case <-cleanupCh:
			res := c.learner.Cleanup()
			c.logger.Info("scheduled cleanup completed",
				zap.Int("removed", len(res.Removed)),
				zap.Int("remaining", res.Remaining))
		}
	}
}

// ingestExisting processes reports that arrived while the loop was down.
func (c *Controller) ingestExisting() {
	entries, err := os.ReadDir(c.cfg.WatchDir)
	if err != nil {
		c.logger.Warn("reading watch directory", zap.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		c.ingestFile(filepath.Join(c.cfg.WatchDir, entry.Name()))
	}
}

// ingestFile parses one report and learns from its fixed issues. The file
// is removed after a successful ingest so reports are processed once.
func (c *Controller) ingestFile(path string) {
	report, err := readReport(path)
	if err != nil {
		c.logger.Warn("skipping malformed report",
			zap.String("path", path),
			zap.Error(err))
		return
	}

	learned := 0
	for _, issue := range report.Issues {
		if issue.BeforeCode == "" || issue.AfterCode == "" {
			// Findings without an applied fix carry nothing to learn.
			continue
		}
		if _, err := c.learnIssue(report, issue); err != nil {
			c.logger.Warn("failed to learn from issue",
				zap.String("category", issue.Category),
				zap.Error(err))
			continue
		}
		learned++
	}

	c.logger.Info("report ingested",
		zap.String("path", path),
		zap.Int("issues", len(report.Issues)),
		zap.Int("learned", learned))

	if err := os.Remove(path); err != nil {
		c.logger.Warn("removing ingested report", zap.Error(err))
	}
}

// learnIssue converts an analyzer finding into an issue-prevention pattern.
func (c *Controller) learnIssue(report *Report, issue Issue) (*learner.LearnResult, error) {
	improvement := issue.Improvement
	if improvement == 0 {
		improvement = severityImprovement(issue.Severity)
	}

	res, err := c.learner.LearnFromSuccess(issue.BeforeCode, issue.AfterCode,
		learner.Metrics{Improvement: improvement},
		&pattern.Context{
			Language:  report.Language,
			Framework: report.Framework,
			Directory: filepath.Dir(issue.File),
			FileType:  strings.TrimPrefix(filepath.Ext(issue.File), "."),
		})
	if err != nil {
		return nil, err
	}

	// Analyzer findings are issue-prevention patterns regardless of what
	// the diff classifier saw in the code.
	if _, err := c.learner.RetypePattern(res.PatternID, pattern.TypeIssuePrevention, issue.Category); err != nil {
		return nil, err
	}
	return res, nil
}

// severityImprovement maps analyzer severities onto effectiveness scores.
func severityImprovement(severity string) float64 {
	switch strings.ToLower(severity) {
	case "critical":
		return 0.9
	case "high":
		return 0.7
	case "medium":
		return 0.5
	case "low":
		return 0.3
	default:
		return 0.4
	}
}

func readReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &report, nil
}
