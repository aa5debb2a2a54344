package models

// SourceMode says where the job-history feed came from.
type SourceMode string

const (
	SourceLive     SourceMode = "live"
	SourceSnapshot SourceMode = "snapshot"
)

// OutputFormat selects how the final report is rendered. The format never
// changes which jobs are included, only how they are printed.
type OutputFormat string

const (
	OutputFull      OutputFormat = "full"
	OutputArtifacts OutputFormat = "artifacts"
	OutputPRs       OutputFormat = "prs"
	OutputJSON      OutputFormat = "json"
)

// RunOptions are the per-run knobs threaded from the entry point into each
// pipeline stage. The value is treated as immutable once the run starts.
type RunOptions struct {
	Resolve   bool
	Download  bool
	DryRun    bool
	DestRoot  string
	HoursBack int // 0 means no started-time window
	Output    OutputFormat
	UseCache  bool
}

// CrawlSession is the ephemeral per-run context. It is created at run start,
// handed through the pipeline stages and discarded at run end; nothing in it
// survives between runs.
type CrawlSession struct {
	RunID   string
	JobName string
	Mode    SourceMode
	Options RunOptions

	// Records holds every build from the feed in source order. Failed is the
	// FAILURE subset, also in source order, and is the slice the resolver and
	// translator mutate. Tasks parallels Failed for jobs that were downloaded.
	Records []JobRecord
	Failed  []JobRecord
	Tasks   []DownloadTask
}
