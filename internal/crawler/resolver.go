package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"prowfetch/internal/config"
	"prowfetch/internal/models"
)

// Resolver fetches each failed job's detail page and extracts the artifact
// base URL. Every failure in here is a per-job soft failure: the record keeps
// an absent artifact URL and a resolve error, and the run continues.
type Resolver struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	scanner ArtifactScanner
	workers int
}

// NewResolver builds a Resolver from config, using the default anchor scanner.
func NewResolver(conf *config.PFConfig) *Resolver {
	return &Resolver{
		baseURL: conf.Prow.BaseURL,
		client:  &http.Client{Timeout: conf.FetchTimeout()},
		timeout: conf.FetchTimeout(),
		scanner: NewAnchorScanner(conf.Crawler.AnchorLabel, conf.Crawler.GatewayMarker),
		workers: conf.Crawler.MaxWorkers,
	}
}

// Resolve runs the detail-page fetches over a bounded worker pool and returns
// a new slice in the same order as the input, regardless of which fetches
// finished first. A record is never re-resolved: anything that already has an
// artifact URL passes through untouched.
func (r *Resolver) Resolve(ctx context.Context, records []models.JobRecord) []models.JobRecord {
	out := make([]models.JobRecord, len(records))
	copy(out, records)

	workers := r.workers
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range out {
		rec := &out[i]
		if rec.ArtifactURL.Valid {
			continue
		}
		g.Go(func() error {
			r.resolveOne(ctx, rec)
			return nil
		})
	}
	// workers never return errors, soft failures live on the records
	_ = g.Wait()

	return out
}

func (r *Resolver) resolveOne(ctx context.Context, rec *models.JobRecord) {
	if !rec.DetailLink.Valid {
		rec.ResolveError = null.StringFrom("no detail page link")
		return
	}

	detailURL := r.DetailURL(rec.DetailLink.String)
	page, err := r.fetch(ctx, detailURL)
	if err != nil {
		log.Warn().
			Err(err).
			Str("build", rec.ID).
			Str("url", detailURL).
			Msg("Could not fetch detail page")
		rec.ResolveError = null.StringFrom(err.Error())
		return
	}

	artifactURL, ok := r.scanner.Scan(page)
	if !ok {
		rec.ResolveError = null.StringFrom("no artifacts link on detail page")
		return
	}

	rec.ArtifactURL = null.StringFrom(artifactURL)
	log.Debug().
		Str("build", rec.ID).
		Str("artifact_url", artifactURL).
		Msg("Resolved artifact URL")
}

// fetch performs a single GET with its own bounded timeout. There are no
// retries at this stage.
func (r *Resolver) fetch(ctx context.Context, fetchURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not build detail page request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detail page fetch failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Error().Err(err).Msg("Could not close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("detail page fetch returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// DetailURL joins the prow base with a relative detail-page path.
func (r *Resolver) DetailURL(link string) string {
	return strings.TrimSuffix(r.baseURL, "/") + "/" + strings.TrimPrefix(link, "/")
}
