package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"prowfetch/internal/cache"
	"prowfetch/internal/config"
	"prowfetch/internal/models"
)

// The job-history page renders its build list as a script-level variable; the
// array literal on that line is the actual feed.
var allBuildsPattern = regexp.MustCompile(`var allBuilds = (.+);`)

// Loader obtains job-history feeds, either from a snapshot file or live from
// the CI front-end. Live fetches consult the cache store first.
type Loader struct {
	historyBase string
	client      *http.Client
	store       cache.Store
}

// New creates a Loader. The store may be a cache.NopStore to disable caching.
func New(conf *config.PFConfig, store cache.Store) *Loader {
	return &Loader{
		historyBase: conf.Prow.HistoryBaseURL,
		client:      &http.Client{Timeout: conf.FetchTimeout()},
		store:       store,
	}
}

// FromFile loads a snapshot file holding the JSON array of builds.
func (l *Loader) FromFile(path string) ([]models.JobRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read snapshot %s: %w", path, err)
	}

	records, err := ParseBuilds(data)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("builds", len(records)).
		Str("path", path).
		Msg("Loaded job history snapshot")
	return records, nil
}

// Fetch retrieves the live job-history page for jobName and parses the
// embedded build array. Any failure here is fatal to the run: an unreachable
// feed and a page without the embedded block both mean there is nothing to
// crawl.
func (l *Loader) Fetch(ctx context.Context, jobName string) ([]models.JobRecord, error) {
	if builds, ok := l.store.Get(ctx, jobName); ok {
		log.Info().Str("job", jobName).Msg("Using cached job history")
		return ParseBuilds(builds)
	}

	historyURL := l.HistoryURL(jobName)
	log.Info().Str("url", historyURL).Msg("Fetching job history")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, historyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not build job history request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not fetch job history: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Error().Err(err).Msg("Could not close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("job history fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read job history page: %w", err)
	}

	builds, err := ExtractBuilds(body)
	if err != nil {
		return nil, err
	}

	if err := l.store.Put(ctx, jobName, builds); err != nil {
		log.Warn().Err(err).Str("job", jobName).Msg("Could not cache job history")
	}

	return ParseBuilds(builds)
}

// HistoryURL joins the job-history base with the job name.
func (l *Loader) HistoryURL(jobName string) string {
	return strings.TrimSuffix(l.historyBase, "/") + "/" + jobName
}

// ExtractBuilds isolates the embedded build array from the job-history page
// payload. Not finding the block is fatal, not a per-job condition.
func ExtractBuilds(page []byte) ([]byte, error) {
	match := allBuildsPattern.FindSubmatch(page)
	if match == nil {
		return nil, fmt.Errorf("could not locate the allBuilds block in the job history page")
	}
	return match[1], nil
}
