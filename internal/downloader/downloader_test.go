package downloader_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"prowfetch/internal/config"
	"prowfetch/internal/downloader"
	"prowfetch/internal/models"
)

func downloaderConfig(command string, timeoutSec int) *config.PFConfig {
	conf := &config.PFConfig{}
	conf.Downloader.Command = command
	conf.Downloader.CopyTimeoutSec = timeoutSec
	conf.Downloader.MaxParallel = 2
	return conf
}

func resolvedRecord(id string) models.JobRecord {
	rec := models.JobRecord{
		ID:          id,
		Result:      models.ResultFailure,
		ArtifactURL: null.StringFrom("https://gcsweb-ci.example.com/gcs/bucket/logs/job/" + id + "/"),
	}
	rec.SetStorageURI("gs://bucket/logs/job/" + id)
	return rec
}

func TestLocalDir(t *testing.T) {
	orch := downloader.New(downloaderConfig("gsutil", 30), "/tmp/artifacts", false)
	assert.Equal(t, filepath.Join("/tmp/artifacts", "job_123"), orch.LocalDir("123"))
}

func TestRunDryRun(t *testing.T) {
	destRoot := filepath.Join(t.TempDir(), "artifacts")
	orch := downloader.New(downloaderConfig("gsutil", 30), destRoot, true)

	records := []models.JobRecord{
		resolvedRecord("1"),
		{ID: "2", Result: models.ResultFailure}, // unresolved, skipped
		resolvedRecord("3"),
	}

	tasks := orch.Run(context.Background(), records)

	require.Len(t, tasks, 2)
	for i, id := range []string{"1", "3"} {
		task := tasks[i]
		assert.Equal(t, id, task.JobID)
		assert.Equal(t, models.TaskSucceeded, task.Status)
		assert.True(t, task.Simulated)
		require.Len(t, task.Commands, 2)
		assert.Equal(t, "mkdir -p "+orch.LocalDir(id), task.Commands[0])
		assert.Equal(t, "gsutil -m cp -r gs://bucket/logs/job/"+id+" "+orch.LocalDir(id)+"/", task.Commands[1])
	}

	// nothing is created on disk
	_, err := os.Stat(destRoot)
	assert.True(t, os.IsNotExist(err))
}

func TestRunSuccess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a unix command")
	}

	destRoot := t.TempDir()
	orch := downloader.New(downloaderConfig("true", 30), destRoot, false)

	tasks := orch.Run(context.Background(), []models.JobRecord{resolvedRecord("1")})

	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskSucceeded, tasks[0].Status)
	assert.False(t, tasks[0].Simulated)
	assert.True(t, tasks[0].StartedAt.Valid)
	assert.True(t, tasks[0].EndedAt.Valid)

	// the destination directory is created before the copy runs
	info, err := os.Stat(orch.LocalDir("1"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRunFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a unix command")
	}

	orch := downloader.New(downloaderConfig("false", 30), t.TempDir(), false)

	tasks := orch.Run(context.Background(), []models.JobRecord{
		resolvedRecord("1"),
		resolvedRecord("2"),
	})

	// one failure does not stop the other download
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, models.TaskFailed, task.Status)
		assert.True(t, task.Stderr.Valid)
	}
}

func TestRunTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a unix shell")
	}

	script := filepath.Join(t.TempDir(), "slowcopy.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nsleep 10\n"), 0o755))

	orch := downloader.New(downloaderConfig(script, 1), t.TempDir(), false)

	tasks := orch.Run(context.Background(), []models.JobRecord{resolvedRecord("1")})

	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskTimedOut, tasks[0].Status)
	assert.Contains(t, tasks[0].Stderr.String, "timed out")
}

func TestRunPreservesRecordOrder(t *testing.T) {
	orch := downloader.New(downloaderConfig("gsutil", 30), t.TempDir(), true)

	records := make([]models.JobRecord, 0, 6)
	ids := []string{"9", "4", "7", "1", "8", "2"}
	for _, id := range ids {
		records = append(records, resolvedRecord(id))
	}

	tasks := orch.Run(context.Background(), records)

	require.Len(t, tasks, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, tasks[i].JobID)
	}
}
