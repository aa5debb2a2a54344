package archive

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"prowfetch/internal/config"
	"prowfetch/internal/report"
)

// Open connects to the archive database. Callers should only get here when a
// host is configured; the archive is entirely optional.
func Open(conf *config.PFConfig) (*sqlx.DB, error) {
	return sqlx.Connect("pgx", conf.GetArchiveURL())
}

// Store is a write-only sink for run outcomes. Nothing in the pipeline ever
// reads these rows back; every run is still a fresh crawl.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// SaveRun records one finished run and its per-job outcomes.
func (s *Store) SaveRun(ctx context.Context, rep *report.Report) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Error().Err(err).Msg("Could not rollback archive transaction")
		}
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO crawl.run
(run_id, job_name, source_mode, generated_at, total_jobs, failed_jobs, resolved_jobs)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, rep.RunID, rep.JobName, rep.Mode, rep.GeneratedAt,
		rep.Summary.TotalJobs, rep.Summary.FailedJobs, rep.Summary.ResolvedJobs)
	if err != nil {
		return err
	}

	for _, job := range rep.Jobs {
		var downloadStatus any
		if job.Download != nil {
			downloadStatus = string(job.Download.Status)
		}

		_, err = tx.ExecContext(ctx, `
INSERT INTO crawl.job_outcome
(run_id, build_id, result, started, pr_number, artifact_url, storage_uri, disposition, download_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, rep.RunID, job.ID, job.Result, job.Started, job.PRNumber,
			job.ArtifactURL, job.StorageURI, job.Disposition, downloadStatus)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}
