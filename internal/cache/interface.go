package cache

import (
	"context"
	"regexp"

	"prowfetch/internal/config"
)

// Snapshot is a cached job-history payload: the raw builds JSON plus the time
// it was stored, so backends can age entries out uniformly.
type Snapshot struct {
	JobName  string `json:"job_name"`
	CachedAt int64  `json:"cached_at"` // unix seconds
	Builds   []byte `json:"builds"`
}

// Store caches raw job-history snapshots between live fetches. A miss, an
// expired entry or a corrupt entry all come back as ok=false; the caller falls
// through to a live fetch. Stores never fail a run.
type Store interface {
	Get(ctx context.Context, jobName string) (builds []byte, ok bool)
	Put(ctx context.Context, jobName string, builds []byte) error
	Delete(ctx context.Context, jobName string) error
	Close() error
}

var unsafeKeyChars = regexp.MustCompile(`[^\w\-]`)

// safeKey turns a job name into a key usable as a filename or redis key.
func safeKey(jobName string) string {
	return unsafeKeyChars.ReplaceAllString(jobName, "_")
}

// FromConfig builds the configured Store. Backend "none" (or anything
// unrecognized) disables caching entirely.
func FromConfig(conf *config.PFConfig) (Store, error) {
	switch conf.Cache.Backend {
	case "file":
		return NewFileStore(conf.Cache.Dir, conf.CacheMaxAge())
	case "redis":
		return NewRedisStore(conf.Cache.Redis.Host, conf.Cache.Redis.Password, conf.Cache.Redis.DB, conf.CacheMaxAge())
	default:
		return NopStore{}, nil
	}
}

// NopStore is the disabled-cache backend: every lookup misses.
type NopStore struct{}

func (NopStore) Get(context.Context, string) ([]byte, bool)  { return nil, false }
func (NopStore) Put(context.Context, string, []byte) error   { return nil }
func (NopStore) Delete(context.Context, string) error        { return nil }
func (NopStore) Close() error                                { return nil }
