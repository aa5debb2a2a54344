package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"prowfetch/internal/config"
	"prowfetch/internal/models"
)

// Orchestrator drives bulk artifact downloads for resolved jobs. One job's
// failure never aborts the others; each job gets its own timeout and its own
// DownloadTask outcome.
type Orchestrator struct {
	command     string
	timeout     time.Duration
	maxParallel int64
	destRoot    string
	dryRun      bool
}

// New builds an Orchestrator. destRoot and dryRun come from the run options
// rather than config because they vary per invocation.
func New(conf *config.PFConfig, destRoot string, dryRun bool) *Orchestrator {
	parallel := int64(conf.Downloader.MaxParallel)
	if parallel < 1 {
		parallel = 1
	}
	return &Orchestrator{
		command:     conf.Downloader.Command,
		timeout:     conf.CopyTimeout(),
		maxParallel: parallel,
		destRoot:    destRoot,
		dryRun:      dryRun,
	}
}

// LocalDir is the job-scoped destination directory under the run's root.
func (o *Orchestrator) LocalDir(jobID string) string {
	return filepath.Join(o.destRoot, "job_"+jobID)
}

// Run downloads artifacts for every record that has a storage URI. Tasks come
// back in the same order as the input records no matter which downloads
// finished first.
func (o *Orchestrator) Run(ctx context.Context, records []models.JobRecord) []models.DownloadTask {
	tasks := make([]models.DownloadTask, 0, len(records))
	for _, rec := range records {
		if !rec.Resolved() {
			continue
		}
		tasks = append(tasks, models.DownloadTask{
			JobID:      rec.ID,
			StorageURI: rec.StorageURI.String,
			LocalDir:   o.LocalDir(rec.ID),
			Status:     models.TaskPending,
		})
	}

	sem := semaphore.NewWeighted(o.maxParallel)
	var wg sync.WaitGroup
	for i := range tasks {
		task := &tasks[i]
		if err := sem.Acquire(ctx, 1); err != nil {
			task.Status = models.TaskFailed
			task.Stderr = null.StringFrom(err.Error())
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			o.download(ctx, task)
		}()
	}
	wg.Wait()

	return tasks
}

func (o *Orchestrator) download(ctx context.Context, task *models.DownloadTask) {
	task.Status = models.TaskRunning
	task.StartedAt = null.TimeFrom(time.Now())
	defer func() {
		task.EndedAt = null.TimeFrom(time.Now())
	}()

	copyArgs := []string{"-m", "cp", "-r", task.StorageURI, task.LocalDir + "/"}

	if o.dryRun {
		// record what would run without touching the filesystem or network
		task.Commands = []string{
			"mkdir -p " + task.LocalDir,
			o.command + " " + strings.Join(copyArgs, " "),
		}
		task.Simulated = true
		task.Status = models.TaskSucceeded
		log.Info().
			Str("build", task.JobID).
			Strs("commands", task.Commands).
			Msg("Dry run, skipping download")
		return
	}

	// pre-existing directory is fine
	if err := os.MkdirAll(task.LocalDir, 0o755); err != nil {
		task.Status = models.TaskFailed
		task.Stderr = null.StringFrom(fmt.Sprintf("could not create %s: %v", task.LocalDir, err))
		return
	}

	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	log.Info().
		Str("build", task.JobID).
		Str("uri", task.StorageURI).
		Str("dir", task.LocalDir).
		Msg("Downloading artifacts")

	cmd := exec.CommandContext(cctx, o.command, copyArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		task.Status = models.TaskSucceeded
		return
	}

	switch {
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		// CommandContext killed the process for us, no orphan left behind
		task.Status = models.TaskTimedOut
		task.Stderr = null.StringFrom(fmt.Sprintf("copy timed out after %s", o.timeout))
		log.Warn().
			Str("build", task.JobID).
			Dur("timeout", o.timeout).
			Msg("Download timed out")
	default:
		task.Status = models.TaskFailed
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Warn().
				Str("build", task.JobID).
				Int("exit_code", exitErr.ExitCode()).
				Msg("Download failed")
		}
		task.Stderr = null.StringFrom(msg)
	}
}
