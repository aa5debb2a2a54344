package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	"github.com/rs/zerolog/log"
	"prowfetch/internal/cache"
	"prowfetch/internal/config"
	"prowfetch/internal/downloader"
	"prowfetch/internal/models"
	"prowfetch/internal/source"
)

// Pipeline wires the crawl stages together: load feed, isolate failures,
// resolve artifact URLs, translate them to storage URIs and optionally drive
// the downloads. Fatal errors come back from Run; everything per-job stays on
// the records and tasks.
type Pipeline struct {
	conf       *config.PFConfig
	loader     *source.Loader
	resolver   *Resolver
	translator Translator
}

// NewPipeline builds a Pipeline using the given snapshot cache store.
func NewPipeline(conf *config.PFConfig, store cache.Store) *Pipeline {
	return &Pipeline{
		conf:       conf,
		loader:     source.New(conf, store),
		resolver:   NewResolver(conf),
		translator: NewTranslator(conf),
	}
}

// RunInput names the feed for one crawl. Snapshot, when set, is a path to a
// pre-fetched builds file and wins over the live fetch.
type RunInput struct {
	JobName  string
	Snapshot string
	Options  models.RunOptions
}

// Run executes one full crawl and returns the finished session.
func (p *Pipeline) Run(ctx context.Context, in RunInput) (*models.CrawlSession, error) {
	session := &models.CrawlSession{
		RunID:   uuid.New().String(),
		JobName: in.JobName,
		Options: in.Options,
	}

	var (
		records []models.JobRecord
		err     error
	)
	if in.Snapshot != "" {
		session.Mode = models.SourceSnapshot
		records, err = p.loader.FromFile(in.Snapshot)
	} else {
		session.Mode = models.SourceLive
		records, err = p.loader.Fetch(ctx, in.JobName)
	}
	if err != nil {
		return nil, err
	}
	session.Records = records

	failed := FilterFailed(records)
	failed = WithinWindow(failed, in.Options.HoursBack, time.Now())
	log.Info().
		Str("run_id", session.RunID).
		Int("total", len(records)).
		Int("failed", len(failed)).
		Msg("Job history loaded")

	if in.Options.Resolve {
		failed = p.resolver.Resolve(ctx, failed)
		for i := range failed {
			rec := &failed[i]
			if !rec.ArtifactURL.Valid {
				continue
			}
			uri, terr := p.translator.Translate(rec.ArtifactURL.String)
			if terr != nil {
				log.Warn().
					Err(terr).
					Str("build", rec.ID).
					Msg("Could not translate artifact URL")
				rec.ResolveError = null.StringFrom(terr.Error())
				continue
			}
			rec.SetStorageURI(uri)
		}
	}
	session.Failed = failed

	if in.Options.Download && in.Options.Resolve {
		orch := downloader.New(p.conf, in.Options.DestRoot, in.Options.DryRun)
		session.Tasks = orch.Run(ctx, failed)
	}

	return session, nil
}
