package crawler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"prowfetch/internal/cache"
	"prowfetch/internal/config"
	"prowfetch/internal/crawler"
	"prowfetch/internal/models"
)

const pipelineSnapshot = `[
	{
		"SpyglassLink": "/view/1",
		"ID": "1",
		"Started": "2026-08-29T10:00:00Z",
		"Result": "FAILURE",
		"Refs": {"pulls": [{"number": 100}]}
	},
	{"ID": "2", "Result": "SUCCESS"},
	{"SpyglassLink": "/view/3", "ID": "3", "Result": "FAILURE"},
	{"ID": "4", "Result": "ABORTED"}
]`

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "builds.json")
	require.NoError(t, os.WriteFile(path, []byte(pipelineSnapshot), 0o644))
	return path
}

func pipelineConfig(baseURL string) *config.PFConfig {
	conf := resolverConfig(baseURL, 2)
	conf.Crawler.GatewayPrefix = "gcs"
	conf.Crawler.StorageScheme = "gs"
	conf.Downloader.Command = "gsutil"
	conf.Downloader.CopyTimeoutSec = 30
	conf.Downloader.MaxParallel = 2
	return conf
}

func TestPipelineRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/view/1":
			fmt.Fprint(w, detailPage("1"))
		case "/view/3":
			// anchor outside the gateway, so translation fails downstream
			fmt.Fprint(w, `<a href="https://other.example.com/artifacts/x/">Artifacts</a>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	pipe := crawler.NewPipeline(pipelineConfig(srv.URL), cache.NopStore{})

	session, err := pipe.Run(context.Background(), crawler.RunInput{
		JobName:  "periodic-job",
		Snapshot: writeSnapshot(t),
		Options:  models.RunOptions{Resolve: true},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, session.RunID)
	assert.Equal(t, models.SourceSnapshot, session.Mode)
	assert.Len(t, session.Records, 4)
	require.Len(t, session.Failed, 2)
	assert.Empty(t, session.Tasks)

	first := session.Failed[0]
	assert.Equal(t, "1", first.ID)
	assert.True(t, first.Resolved())
	assert.Equal(t, "gs://bucket/logs/job/1", first.StorageURI.String)
	assert.Equal(t, int64(100), first.PRNumber.Int64)

	second := session.Failed[1]
	assert.Equal(t, "3", second.ID)
	assert.True(t, second.ArtifactURL.Valid)
	assert.False(t, second.StorageURI.Valid, "untranslatable URL never produces a storage URI")
	assert.True(t, second.ResolveError.Valid)
}

func TestPipelineRunNoResolve(t *testing.T) {
	pipe := crawler.NewPipeline(pipelineConfig("https://unused.example.com"), cache.NopStore{})

	session, err := pipe.Run(context.Background(), crawler.RunInput{
		JobName:  "periodic-job",
		Snapshot: writeSnapshot(t),
		Options:  models.RunOptions{},
	})
	require.NoError(t, err)

	require.Len(t, session.Failed, 2)
	for _, rec := range session.Failed {
		assert.False(t, rec.ArtifactURL.Valid)
		assert.False(t, rec.StorageURI.Valid)
	}
}

func TestPipelineRunDryRunDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/view/"):]
		fmt.Fprint(w, detailPage(id))
	}))
	defer srv.Close()

	destRoot := filepath.Join(t.TempDir(), "artifacts")
	pipe := crawler.NewPipeline(pipelineConfig(srv.URL), cache.NopStore{})

	session, err := pipe.Run(context.Background(), crawler.RunInput{
		JobName:  "periodic-job",
		Snapshot: writeSnapshot(t),
		Options: models.RunOptions{
			Resolve:  true,
			Download: true,
			DryRun:   true,
			DestRoot: destRoot,
		},
	})
	require.NoError(t, err)

	require.Len(t, session.Tasks, 2)
	for i, id := range []string{"1", "3"} {
		task := session.Tasks[i]
		assert.Equal(t, id, task.JobID)
		assert.True(t, task.Simulated)
		assert.Equal(t, models.TaskSucceeded, task.Status)
		require.Len(t, task.Commands, 2)
		assert.Contains(t, task.Commands[1], "gsutil -m cp -r gs://bucket/logs/job/"+id)
	}

	// dry run leaves the filesystem alone
	_, err = os.Stat(destRoot)
	assert.True(t, os.IsNotExist(err))
}

func TestPipelineRunFatalOnBadSnapshot(t *testing.T) {
	pipe := crawler.NewPipeline(pipelineConfig("https://unused.example.com"), cache.NopStore{})

	path := filepath.Join(t.TempDir(), "builds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "an array"}`), 0o644))

	_, err := pipe.Run(context.Background(), crawler.RunInput{
		JobName:  "periodic-job",
		Snapshot: path,
		Options:  models.RunOptions{},
	})
	assert.Error(t, err)
}
