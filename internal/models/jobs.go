package models

import (
	"github.com/guregu/null/v6"
)

// JobResult is the terminal result of a single CI build as reported by the
// job-history feed.
type JobResult string

const (
	ResultSuccess JobResult = "SUCCESS"
	ResultFailure JobResult = "FAILURE"
	ResultAborted JobResult = "ABORTED"
	ResultUnknown JobResult = "UNKNOWN"
)

// ParseJobResult normalizes the raw result string from the feed. Anything the
// feed omits or that we do not recognize maps to ResultUnknown.
func ParseJobResult(s string) JobResult {
	switch JobResult(s) {
	case ResultSuccess, ResultFailure, ResultAborted:
		return JobResult(s)
	default:
		return ResultUnknown
	}
}

// JobRecord is one CI build from the job-history feed. Result is assigned once
// at ingestion and never mutated afterwards. ArtifactURL is populated by the
// detail-page resolver and StorageURI is derived from it; StorageURI is never
// set while ArtifactURL is absent.
type JobRecord struct {
	ID           string      `json:"id"`
	Started      null.Time   `json:"started"`
	Duration     null.Int    `json:"duration"` // nanoseconds
	Result       JobResult   `json:"result"`
	DetailLink   null.String `json:"detail_link"`
	PRNumber     null.Int    `json:"pr_number"`
	ArtifactURL  null.String `json:"artifact_url"`
	StorageURI   null.String `json:"storage_uri"`
	ResolveError null.String `json:"resolve_error,omitempty"`
}

// Resolved reports whether the record has a usable object-storage address.
func (j *JobRecord) Resolved() bool {
	return j.ArtifactURL.Valid && j.StorageURI.Valid
}

// SetStorageURI records the translated object-storage URI. It refuses to set
// the URI while the artifact URL is absent so the two fields can never get out
// of step.
func (j *JobRecord) SetStorageURI(uri string) bool {
	if !j.ArtifactURL.Valid {
		return false
	}
	j.StorageURI = null.StringFrom(uri)
	return true
}

// TaskStatus is the lifecycle state of a single artifact download.
type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskRunning   TaskStatus = "RUNNING"
	TaskSucceeded TaskStatus = "SUCCEEDED"
	TaskFailed    TaskStatus = "FAILED"
	TaskTimedOut  TaskStatus = "TIMED_OUT"
)

// DownloadTask tracks one bulk-copy attempt for a resolved job. A terminal
// status is assigned exactly once; tasks are never retried within a run.
type DownloadTask struct {
	JobID      string      `json:"job_id"`
	StorageURI string      `json:"storage_uri"`
	LocalDir   string      `json:"local_directory"`
	Status     TaskStatus  `json:"status"`
	Simulated  bool        `json:"simulated,omitempty"`
	Commands   []string    `json:"commands,omitempty"` // dry-run only: the commands that would have run
	Stderr     null.String `json:"stderr,omitempty"`
	StartedAt  null.Time   `json:"attempt_started_at"`
	EndedAt    null.Time   `json:"attempt_ended_at"`
}
