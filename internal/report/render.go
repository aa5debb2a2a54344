package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"prowfetch/internal/models"
)

// Render writes the report in the requested format. The format only changes
// presentation; the job set is fixed when the report is built.
func (r *Report) Render(w io.Writer, format models.OutputFormat) error {
	switch format {
	case models.OutputJSON:
		return r.JSON(w)
	case models.OutputArtifacts:
		return r.ArtifactURLs(w)
	case models.OutputPRs:
		return r.PRNumbers(w)
	default:
		return r.Text(w)
	}
}

// JSON writes the machine-readable form mirroring the record and task fields.
func (r *Report) JSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ArtifactURLs writes one resolved artifact URL per line.
func (r *Report) ArtifactURLs(w io.Writer) error {
	for _, job := range r.Jobs {
		if job.ArtifactURL.Valid {
			if _, err := fmt.Fprintln(w, job.ArtifactURL.String); err != nil {
				return err
			}
		}
	}
	return nil
}

// PRNumbers writes the distinct PR numbers, one per line.
func (r *Report) PRNumbers(w io.Writer) error {
	for _, pr := range r.Summary.PRNumbers {
		if _, err := fmt.Fprintln(w, pr); err != nil {
			return err
		}
	}
	return nil
}

// Text writes the human-readable line-oriented report.
func (r *Report) Text(w io.Writer) error {
	s := r.Summary

	fmt.Fprintf(w, "=== Job Summary for %s ===\n", r.JobName)
	fmt.Fprintf(w, "Total jobs: %d\n", s.TotalJobs)
	fmt.Fprintf(w, "Failed jobs: %d\n", s.FailedJobs)
	fmt.Fprintf(w, "Successful jobs: %d\n", s.SucceededJobs)

	if len(r.Jobs) == 0 {
		fmt.Fprintln(w, "\nNo failed jobs found.")
		return nil
	}

	fmt.Fprintln(w, "\n=== Failed Jobs Details ===")
	for i, job := range r.Jobs {
		fmt.Fprintf(w, "\n%d. Build ID: %s\n", i+1, job.ID)
		fmt.Fprintf(w, "   Started: %s\n", formatStarted(&job))
		fmt.Fprintf(w, "   Duration: %s\n", formatDuration(&job))
		if job.DetailLink.Valid {
			fmt.Fprintf(w, "   Detail page: %s\n", job.DetailLink.String)
		}
		switch {
		case job.ArtifactURL.Valid:
			fmt.Fprintf(w, "   Artifacts URL: %s\n", job.ArtifactURL.String)
		case job.ResolveError.Valid:
			fmt.Fprintf(w, "   Artifacts URL: not resolved (%s)\n", job.ResolveError.String)
		default:
			fmt.Fprintln(w, "   Artifacts URL: not resolved")
		}
		if job.StorageURI.Valid {
			fmt.Fprintf(w, "   Storage URI: %s\n", job.StorageURI.String)
		}
		if job.PRNumber.Valid {
			fmt.Fprintf(w, "   PR: #%d\n", job.PRNumber.Int64)
		}
		if job.Download != nil {
			fmt.Fprintf(w, "   Download: %s\n", formatTask(job.Download))
		}
	}

	if len(s.PRNumbers) > 0 {
		fmt.Fprintln(w, "\n=== Failed PR Numbers ===")
		for _, pr := range s.PRNumbers {
			fmt.Fprintln(w, pr)
		}
	}

	if s.Downloads != nil {
		fmt.Fprintln(w, "\n=== Download Summary ===")
		fmt.Fprintf(w, "Successful downloads: %d/%d\n", s.Downloads.Succeeded, s.Downloads.Attempted)
		if s.Downloads.TimedOut > 0 {
			fmt.Fprintf(w, "Timed out: %d\n", s.Downloads.TimedOut)
		}
	}

	return nil
}

func formatStarted(job *JobEntry) string {
	if !job.Started.Valid {
		return "unknown"
	}
	return job.Started.Time.UTC().Format(time.RFC3339)
}

func formatDuration(job *JobEntry) string {
	if !job.Duration.Valid || job.Duration.Int64 == 0 {
		return "unknown"
	}
	return time.Duration(job.Duration.Int64).String()
}

func formatTask(task *models.DownloadTask) string {
	out := string(task.Status)
	if task.Simulated {
		out += " (simulated)"
	}
	if task.Stderr.Valid {
		out += ": " + task.Stderr.String
	}
	return out
}
