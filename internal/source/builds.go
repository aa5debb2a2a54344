package source

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	"prowfetch/internal/models"
)

// rawBuild mirrors one entry of the job-history feed. The feed carries more
// fields than we care about; anything unlisted here is ignored, and every
// optional field decodes to an absent value rather than an error.
type rawBuild struct {
	ID           string      `json:"ID"`
	Started      null.String `json:"Started"`
	Duration     null.Int    `json:"Duration"`
	Result       null.String `json:"Result"`
	SpyglassLink null.String `json:"SpyglassLink"`
	Refs         *rawRefs    `json:"Refs"`
}

type rawRefs struct {
	Pulls []rawPull `json:"pulls"`
}

type rawPull struct {
	Number null.Int `json:"number"`
}

// ParseBuilds decodes a JSON array of build objects into job records in feed
// order. A payload that is not an array of objects, or a build without an ID,
// is a fatal error for the run.
func ParseBuilds(data []byte) ([]models.JobRecord, error) {
	var raws []rawBuild
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("job history is not a JSON array of builds: %w", err)
	}

	records := make([]models.JobRecord, 0, len(raws))
	for i, rb := range raws {
		if rb.ID == "" {
			return nil, fmt.Errorf("build %d in job history has no ID", i)
		}

		rec := models.JobRecord{
			ID:         rb.ID,
			Duration:   rb.Duration,
			Result:     models.ParseJobResult(rb.Result.String),
			DetailLink: null.NewString(rb.SpyglassLink.String, rb.SpyglassLink.Valid && rb.SpyglassLink.String != ""),
		}

		if rb.Started.Valid {
			// the feed writes RFC3339; an unparsable value stays absent
			if ts, err := time.Parse(time.RFC3339, rb.Started.String); err == nil {
				rec.Started = null.TimeFrom(ts)
			}
		}

		if rb.Refs != nil && len(rb.Refs.Pulls) > 0 {
			rec.PRNumber = rb.Refs.Pulls[0].Number
		}

		records = append(records, rec)
	}

	return records, nil
}
