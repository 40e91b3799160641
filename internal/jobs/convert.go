package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/logger"
)

// Converter turns statement text into transactions.
type Converter interface {
	Convert(ctx context.Context, text string) (*domain.ConversionResult, error)
}

// StatusCounter is told about every finished attempt.
type StatusCounter interface {
	IncrJob(status string)
}

// ConvertHandler returns a JobHandler that converts a job's retained text and
// stores the result on the job. counter may be nil.
func ConvertHandler(conv Converter, counter StatusCounter) JobHandler {
	return func(ctx context.Context, job Job) error {
		convertJob, ok := job.(*ConvertStatementJob)
		if !ok {
			return fmt.Errorf("ConvertHandler: unexpected job type: %T", job)
		}

		log := logger.FromContext(ctx).With().
			Str("job_id", convertJob.JobID).
			Str("file_name", convertJob.FileName).
			Logger()
		log.Info().Int("attempt", convertJob.Attempts).Msg("Converting statement")

		result, err := conv.Convert(logger.WithContext(ctx, log), convertJob.Text)
		if err != nil {
			count(counter, JobStatusFailed)
			return err
		}

		convertJob.Result = result
		count(counter, JobStatusCompleted)
		log.Info().Int("transactions", len(result.Transactions)).Msg("Statement converted")
		return nil
	}
}

func count(counter StatusCounter, status JobStatus) {
	if counter != nil {
		counter.IncrJob(string(status))
	}
}
