package report

import (
	"time"

	"prowfetch/internal/models"
)

// Disposition is the user-visible outcome for one failed job. Unresolved,
// resolved-but-not-downloaded and the download outcomes are deliberately kept
// apart so the report never collapses them into a single failed bucket.
type Disposition string

const (
	DispositionUnresolved       Disposition = "unresolved"
	DispositionResolved         Disposition = "resolved"
	DispositionDownloaded       Disposition = "downloaded"
	DispositionDownloadFailed   Disposition = "download_failed"
	DispositionDownloadTimedOut Disposition = "download_timed_out"
)

// JobEntry is one failed job in the report, with its download task when a
// download was attempted.
type JobEntry struct {
	models.JobRecord
	Disposition Disposition          `json:"disposition"`
	Download    *models.DownloadTask `json:"download,omitempty"`
}

// DownloadSummary aggregates task outcomes when downloads ran.
type DownloadSummary struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	TimedOut  int `json:"timed_out"`
}

// Summary holds the run-level counts.
type Summary struct {
	TotalJobs     int              `json:"total_jobs"`
	FailedJobs    int              `json:"failed_jobs"`
	SucceededJobs int              `json:"succeeded_jobs"` // total minus failed; UNKNOWN counts as non-failed
	ResolvedJobs  int              `json:"resolved_jobs"`
	PRNumbers     []int64          `json:"pr_numbers"`
	Downloads     *DownloadSummary `json:"downloads,omitempty"`
}

// Report is the full, render-agnostic result of a crawl session. Every
// renderer works off the same Jobs slice, so selecting an output form never
// changes which jobs are included.
type Report struct {
	RunID       string            `json:"run_id"`
	JobName     string            `json:"job_name"`
	Mode        models.SourceMode `json:"source_mode"`
	GeneratedAt time.Time         `json:"generated_at"`
	Summary     Summary           `json:"summary"`
	Jobs        []JobEntry        `json:"jobs"`
}

// Build assembles the report from a finished session. Job order follows the
// session's failed-job order, which itself follows the feed.
func Build(session *models.CrawlSession) *Report {
	rep := &Report{
		RunID:       session.RunID,
		JobName:     session.JobName,
		Mode:        session.Mode,
		GeneratedAt: time.Now(),
	}

	tasksByJob := make(map[string]*models.DownloadTask, len(session.Tasks))
	for i := range session.Tasks {
		task := &session.Tasks[i]
		tasksByJob[task.JobID] = task
	}

	seenPRs := make(map[int64]bool)
	for _, rec := range session.Failed {
		entry := JobEntry{JobRecord: rec}
		if task, ok := tasksByJob[rec.ID]; ok {
			entry.Download = task
		}
		entry.Disposition = disposition(&rec, entry.Download)
		rep.Jobs = append(rep.Jobs, entry)

		if rec.Resolved() {
			rep.Summary.ResolvedJobs++
		}
		if rec.PRNumber.Valid && !seenPRs[rec.PRNumber.Int64] {
			seenPRs[rec.PRNumber.Int64] = true
			rep.Summary.PRNumbers = append(rep.Summary.PRNumbers, rec.PRNumber.Int64)
		}
	}

	rep.Summary.TotalJobs = len(session.Records)
	rep.Summary.FailedJobs = len(session.Failed)
	rep.Summary.SucceededJobs = rep.Summary.TotalJobs - rep.Summary.FailedJobs

	if len(session.Tasks) > 0 {
		ds := &DownloadSummary{Attempted: len(session.Tasks)}
		for _, task := range session.Tasks {
			switch task.Status {
			case models.TaskSucceeded:
				ds.Succeeded++
			case models.TaskTimedOut:
				ds.TimedOut++
			default:
				ds.Failed++
			}
		}
		rep.Summary.Downloads = ds
	}

	return rep
}

func disposition(rec *models.JobRecord, task *models.DownloadTask) Disposition {
	if !rec.Resolved() {
		return DispositionUnresolved
	}
	if task == nil {
		return DispositionResolved
	}
	switch task.Status {
	case models.TaskSucceeded:
		return DispositionDownloaded
	case models.TaskTimedOut:
		return DispositionDownloadTimedOut
	default:
		return DispositionDownloadFailed
	}
}
