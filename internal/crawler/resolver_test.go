package crawler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"prowfetch/internal/config"
	"prowfetch/internal/crawler"
	"prowfetch/internal/models"
)

func resolverConfig(baseURL string, workers int) *config.PFConfig {
	conf := &config.PFConfig{}
	conf.Prow.BaseURL = baseURL
	conf.Prow.FetchTimeoutSec = 5
	conf.Crawler.MaxWorkers = workers
	conf.Crawler.AnchorLabel = "Artifacts"
	conf.Crawler.GatewayMarker = "gcsweb-ci"
	return conf
}

func detailPage(id string) string {
	return fmt.Sprintf(
		`<html><body><a href="https://gcsweb-ci.example.com/gcs/bucket/logs/job/%s/">Artifacts</a></body></html>`,
		id)
}

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/view/1":
			fmt.Fprint(w, detailPage("1"))
		case "/view/2":
			w.WriteHeader(http.StatusInternalServerError)
		case "/view/3":
			fmt.Fprint(w, `<html><body><a href="https://example.com/log">Build Log</a></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	resolver := crawler.NewResolver(resolverConfig(srv.URL, 2))

	records := []models.JobRecord{
		{ID: "1", Result: models.ResultFailure, DetailLink: null.StringFrom("/view/1")},
		{ID: "2", Result: models.ResultFailure, DetailLink: null.StringFrom("/view/2")},
		{ID: "3", Result: models.ResultFailure, DetailLink: null.StringFrom("/view/3")},
		{ID: "4", Result: models.ResultFailure},
	}

	out := resolver.Resolve(context.Background(), records)
	require.Len(t, out, 4)

	// resolved
	assert.Equal(t, "https://gcsweb-ci.example.com/gcs/bucket/logs/job/1/", out[0].ArtifactURL.String)
	assert.False(t, out[0].ResolveError.Valid)

	// server error is a per-job soft failure
	assert.False(t, out[1].ArtifactURL.Valid)
	assert.Contains(t, out[1].ResolveError.String, "500")

	// page without an artifacts anchor
	assert.False(t, out[2].ArtifactURL.Valid)
	assert.Equal(t, "no artifacts link on detail page", out[2].ResolveError.String)

	// record without a detail link
	assert.False(t, out[3].ArtifactURL.Valid)
	assert.Equal(t, "no detail page link", out[3].ResolveError.String)

	// input slice is untouched
	assert.False(t, records[0].ArtifactURL.Valid)
}

func TestResolveKeepsInputOrder(t *testing.T) {
	// later records answer faster than earlier ones, so completion order is the
	// reverse of input order
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/view/"):]
		switch id {
		case "1":
			time.Sleep(150 * time.Millisecond)
		case "2":
			time.Sleep(75 * time.Millisecond)
		}
		fmt.Fprint(w, detailPage(id))
	}))
	defer srv.Close()

	resolver := crawler.NewResolver(resolverConfig(srv.URL, 4))

	records := []models.JobRecord{
		{ID: "1", DetailLink: null.StringFrom("/view/1")},
		{ID: "2", DetailLink: null.StringFrom("/view/2")},
		{ID: "3", DetailLink: null.StringFrom("/view/3")},
	}

	out := resolver.Resolve(context.Background(), records)
	require.Len(t, out, 3)
	for i, id := range []string{"1", "2", "3"} {
		assert.Equal(t, id, out[i].ID)
		assert.Equal(t,
			fmt.Sprintf("https://gcsweb-ci.example.com/gcs/bucket/logs/job/%s/", id),
			out[i].ArtifactURL.String)
	}
}

func TestResolveSkipsAlreadyResolved(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		fmt.Fprint(w, detailPage("1"))
	}))
	defer srv.Close()

	resolver := crawler.NewResolver(resolverConfig(srv.URL, 2))

	records := []models.JobRecord{
		{
			ID:          "1",
			DetailLink:  null.StringFrom("/view/1"),
			ArtifactURL: null.StringFrom("https://gcsweb-ci.example.com/gcs/bucket/existing/"),
		},
	}

	out := resolver.Resolve(context.Background(), records)
	require.Len(t, out, 1)
	assert.Equal(t, "https://gcsweb-ci.example.com/gcs/bucket/existing/", out[0].ArtifactURL.String)
	assert.Equal(t, 0, hits, "already-resolved records are never re-fetched")
}

func TestDetailURL(t *testing.T) {
	resolver := crawler.NewResolver(resolverConfig("https://prow.example.com/", 1))
	assert.Equal(t, "https://prow.example.com/view/gs/bucket/1", resolver.DetailURL("/view/gs/bucket/1"))
	assert.Equal(t, "https://prow.example.com/view/gs/bucket/1", resolver.DetailURL("view/gs/bucket/1"))
}
