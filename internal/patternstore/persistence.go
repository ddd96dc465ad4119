package patternstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternbank/internal/pattern"
)

// SnapshotVersion is the persisted file format version.
const SnapshotVersion = "1.0"

// snapshot is the on-disk representation: the full pattern list plus
// file metadata. The file is rewritten whole on every persist.
type snapshot struct {
	Patterns []*pattern.Pattern `json:"patterns"`
	Metadata snapshotMetadata   `json:"metadata"`
}

type snapshotMetadata struct {
	Version       string    `json:"version"`
	LastModified  time.Time `json:"last_modified"`
	TotalPatterns int       `json:"total_patterns"`
}

// requestPersist signals the background writer. Non-blocking: if a write
// is already pending the new signal coalesces into it.
func (s *Store) requestPersist() {
	if s.cfg.SnapshotPath == "" {
		return
	}
	select {
	case s.persistCh <- struct{}{}:
	default:
	}
}

// persistLoop writes snapshots as mutations arrive. Write failures are
// logged and swallowed; the store stays usable in memory.
func (s *Store) persistLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case <-s.persistCh:
			if err := s.writeSnapshot(); err != nil {
				s.logger.Warn("snapshot write failed",
					zap.String("path", s.cfg.SnapshotPath),
					zap.Error(err))
			}
		}
	}
}

// writeSnapshot rewrites the snapshot file atomically (temp file + rename),
// so a failed write never corrupts the previous snapshot.
func (s *Store) writeSnapshot() error {
	if s.cfg.SnapshotPath == "" {
		return nil
	}

	s.mu.RLock()
	snap := snapshot{
		Patterns: make([]*pattern.Pattern, 0, len(s.patterns)),
		Metadata: snapshotMetadata{
			Version:       SnapshotVersion,
			LastModified:  time.Now(),
			TotalPatterns: len(s.patterns),
		},
	}
	for _, p := range s.patterns {
		snap.Patterns = append(snap.Patterns, p.Clone())
	}
	s.mu.RUnlock()

	// Stable output ordering keeps snapshot diffs readable.
	sort.Slice(snap.Patterns, func(i, j int) bool {
		return snap.Patterns[i].ID < snap.Patterns[j].ID
	})

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	dir := filepath.Dir(s.cfg.SnapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".patterns-*.json")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.cfg.SnapshotPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// loadSnapshot reads the snapshot at startup. A missing file is a fresh
// store, not an error.
func (s *Store) loadSnapshot() error {
	data, err := os.ReadFile(s.cfg.SnapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading snapshot: %w", err)
	}

	patterns, err := decodeSnapshot(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for _, p := range patterns {
		s.patterns[p.ID] = p
	}
	s.mu.Unlock()

	s.logger.Info("snapshot loaded",
		zap.String("path", s.cfg.SnapshotPath),
		zap.Int("pattern_count", len(patterns)))
	return nil
}

// RestoreFromBackup replaces the entire store contents with the patterns
// in the given snapshot file. The restore is atomic: the file is parsed
// and validated fully before any live state changes, so a malformed
// backup leaves the store untouched.
func (s *Store) RestoreFromBackup(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading backup: %w", err)
	}

	patterns, err := decodeSnapshot(data)
	if err != nil {
		return fmt.Errorf("parsing backup: %w", err)
	}

	s.mu.Lock()
	s.patterns = make(map[string]*pattern.Pattern, len(patterns))
	for _, p := range patterns {
		s.patterns[p.ID] = p
	}
	s.idx.rebuild(s.patterns)
	s.dirty = false
	s.mu.Unlock()

	s.logger.Info("store restored from backup",
		zap.String("path", path),
		zap.Int("pattern_count", len(patterns)))

	s.requestPersist()
	return nil
}

// decodeSnapshot parses and validates snapshot bytes. Every record must be
// valid; one bad record rejects the whole snapshot so restores stay atomic.
func decodeSnapshot(data []byte) ([]*pattern.Pattern, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}

	seen := make(map[string]struct{}, len(snap.Patterns))
	for _, p := range snap.Patterns {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid pattern %q in snapshot: %w", p.ID, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s in snapshot", pattern.ErrDuplicateID, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return snap.Patterns, nil
}
