package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// ProcessFileTask is scheduled each time a file is uploaded.
	ProcessFileTask = "file:process"

	// MaxAttempts bounds redelivery of one ingestion task. After the retries
	// are exhausted the file's failed status is the user-visible signal.
	MaxAttempts = 3
)

// ProcessPayload is serialized into the task payload so the worker knows
// which upload to ingest.
type ProcessPayload struct {
	FileID string `json:"file_id"`
}

// EnqueueProcess enqueues an ingestion job for the given upload. Dispatch is
// explicit: the upload handler calls this after the pending row is created,
// with no implicit reactive binding in between.
func EnqueueProcess(ctx context.Context, client *asynq.Client, payload ProcessPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ProcessFileTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(MaxAttempts)); err != nil {
		return fmt.Errorf("enqueue process task: %w", err)
	}
	return nil
}
