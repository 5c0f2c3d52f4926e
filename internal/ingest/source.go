package ingest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/dvloznov/sales-ledger/internal/gcs"
	"github.com/dvloznov/sales-ledger/internal/jobs"
	"github.com/dvloznov/sales-ledger/internal/ledger"
)

// OpenSource opens a batch source for streaming: a gs:// URI or a local file
// path.
func OpenSource(ctx context.Context, source string) (io.ReadCloser, error) {
	if gcs.IsURI(source) {
		return gcs.Open(ctx, source)
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	return f, nil
}

// IngestSource runs one batch named by source through the pipeline.
func (p *Pipeline) IngestSource(ctx context.Context, source string) (*ledger.IngestResult, error) {
	rc, err := OpenSource(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return p.Ingest(ctx, rc)
}

// JobHandler adapts the pipeline into a background job handler. The handler
// records how far the run got on the job even when it fails, and removes
// locally staged batch files once processed when removeLocal is set.
func JobHandler(p *Pipeline, removeLocal bool, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.IngestJob) error {
		log.Info().
			Str("job_id", job.JobID).
			Str("source", job.Source).
			Msg("Processing ingest job")

		result, err := p.IngestSource(ctx, job.Source)
		if result != nil {
			job.Accepted = result.Accepted
			job.Rejected = len(result.Rejected)
			job.Duplicates = len(result.Duplicates)
			job.Processed = result.Processed
		}

		if removeLocal && !gcs.IsURI(job.Source) {
			if rmErr := os.Remove(job.Source); rmErr != nil {
				log.Warn().Err(rmErr).Str("source", job.Source).Msg("Failed to remove staged batch")
			}
		}

		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", job.JobID).
				Int("processed", job.Processed).
				Msg("Ingest job failed")
			return err
		}

		log.Info().
			Str("job_id", job.JobID).
			Int("accepted", job.Accepted).
			Int("rejected", job.Rejected).
			Int("duplicates", job.Duplicates).
			Msg("Ingest job completed")
		return nil
	}
}
