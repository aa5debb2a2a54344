package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "prowfetch:history:"

// RedisStore implements Store using Redis. Expiry is delegated to Redis via
// per-key TTLs, so Get never has to age-check entries itself.
type RedisStore struct {
	client *redis.Client
	maxAge time.Duration
}

// NewRedisStore creates a new Redis cache backend
func NewRedisStore(addr, password string, db int, maxAge time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, maxAge: maxAge}, nil
}

// Get returns the cached builds payload if the key is still live.
func (r *RedisStore) Get(ctx context.Context, jobName string) ([]byte, bool) {
	data, err := r.client.Get(ctx, keyPrefix+safeKey(jobName)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().
				Err(err).
				Str("job", jobName).
				Msg("Cache lookup failed, treating as miss")
		}
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
	return snap.Builds, true
}

// Put stores the builds payload under the job key with the configured TTL.
func (r *RedisStore) Put(ctx context.Context, jobName string, builds []byte) error {
	snap := Snapshot{
		JobName:  jobName,
		CachedAt: time.Now().Unix(),
		Builds:   builds,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+safeKey(jobName), data, r.maxAge).Err()
}

// Delete removes the entry for a job.
func (r *RedisStore) Delete(ctx context.Context, jobName string) error {
	return r.client.Del(ctx, keyPrefix+safeKey(jobName)).Err()
}

// Close terminates the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
