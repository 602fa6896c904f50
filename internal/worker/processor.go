package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/ingest"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/queue"
)

// Processor is plugged into the asynq worker loop. It adapts the explicit
// ingest.Outcome onto asynq's retry semantics: retryable outcomes return a
// plain error so asynq redelivers within the task's retry budget, fatal
// outcomes carry asynq.SkipRetry so the failure is terminal immediately.
type Processor struct {
	runner *ingest.Runner
}

// NewProcessor constructs a worker processor.
func NewProcessor(runner *ingest.Runner) *Processor {
	return &Processor{runner: runner}
}

// Handler registers the ingestion job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ProcessFileTask, p.handleProcess)
	return mux
}

func (p *Processor) handleProcess(ctx context.Context, task *asynq.Task) error {
	var payload queue.ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	outcome := p.runner.Run(ctx, payload.FileID)
	switch outcome.Code {
	case ingest.OutcomeRetryable:
		return fmt.Errorf("ingest %s: %w", payload.FileID, outcome.Err)
	case ingest.OutcomeFatal:
		return fmt.Errorf("ingest %s: %v: %w", payload.FileID, outcome.Err, asynq.SkipRetry)
	default:
		return nil
	}
}
