package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// FileStore keeps one JSON file per job name under a cache directory. Entries
// older than maxAge are treated as misses.
type FileStore struct {
	dir    string
	maxAge time.Duration
}

// NewFileStore creates the cache directory if needed. An empty dir selects
// ~/.cache/prowfetch.
func NewFileStore(dir string, maxAge time.Duration) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".cache", "prowfetch")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, maxAge: maxAge}, nil
}

func (f *FileStore) path(jobName string) string {
	return filepath.Join(f.dir, safeKey(jobName)+".json")
}

// Get returns the cached builds payload if present and fresh.
func (f *FileStore) Get(_ context.Context, jobName string) ([]byte, bool) {
	data, err := os.ReadFile(f.path(jobName))
	if err != nil {
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().
			Err(err).
			Str("job", jobName).
			Msg("Ignoring corrupt cache entry")
		return nil, false
	}

	age := time.Since(time.Unix(snap.CachedAt, 0))
	if age > f.maxAge {
		return nil, false
	}
	return snap.Builds, true
}

// Put stores the builds payload with the current timestamp.
func (f *FileStore) Put(_ context.Context, jobName string, builds []byte) error {
	snap := Snapshot{
		JobName:  jobName,
		CachedAt: time.Now().Unix(),
		Builds:   builds,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path(jobName), data, 0o644)
}

// Delete removes the entry for a job. Missing entries are not an error.
func (f *FileStore) Delete(_ context.Context, jobName string) error {
	err := os.Remove(f.path(jobName))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *FileStore) Close() error { return nil }
