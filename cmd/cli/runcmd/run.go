package runcmd

import (
	"github.com/rs/zerolog/log"
	"prowfetch/internal/cache"
	"prowfetch/internal/config"
)

func mustStore(conf *config.PFConfig, useCache bool) cache.Store {
	if !useCache {
		return cache.NopStore{}
	}

	store, err := cache.FromConfig(conf)
	if err != nil {
		log.Fatal().Err(err).Str("backend", conf.Cache.Backend).Msg("Could not set up history cache")
	}
	return store
}

func closeStore(store cache.Store) {
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Could not close history cache cleanly")
	}
}
