// Package ingest implements one ingestion run: load the upload, gate on
// headers, stream rows, validate each, persist the accepted ones, and drive
// the lifecycle status. The run reports its result as an explicit Outcome so
// the dispatcher owns the retry policy.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/lifecycle"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/model"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/reader"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/validate"
)

// ErrInvalidHeaders means the file's declared column set does not match the
// expected schema. The run fails before any row is processed.
var ErrInvalidHeaders = errors.New("invalid file headers")

// OutcomeCode classifies how a run ended.
type OutcomeCode int

const (
	// OutcomeSuccess: the run completed, or was a harmless repeat delivery.
	OutcomeSuccess OutcomeCode = iota
	// OutcomeRetryable: a transient infrastructure fault; the dispatcher may
	// re-attempt within its retry budget.
	OutcomeRetryable
	// OutcomeFatal: a deterministic failure; re-running cannot help and the
	// file has been marked failed where the stores allowed it.
	OutcomeFatal
)

// Outcome is the result of one ingestion run.
type Outcome struct {
	Code     OutcomeCode
	Err      error
	Inserted int
	Skipped  int
}

func success(inserted, skipped int) Outcome {
	return Outcome{Code: OutcomeSuccess, Inserted: inserted, Skipped: skipped}
}

func retryable(err error) Outcome { return Outcome{Code: OutcomeRetryable, Err: err} }

func fatal(err error) Outcome { return Outcome{Code: OutcomeFatal, Err: err} }

// UploadStore exposes the guarded lifecycle mutations for uploaded files.
// Implementations must apply each transition atomically against its allowed
// source states and return lifecycle.ErrInvalidTransition otherwise.
type UploadStore interface {
	Get(ctx context.Context, id string) (*model.FileUpload, error)
	StartProcessing(ctx context.Context, id string) error
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// UserStore persists accepted rows. Insert must surface a unique-constraint
// conflict on the fingerprint signature as model.ErrDuplicateSignature.
type UserStore interface {
	Insert(ctx context.Context, rec *model.UserRecord) error
	SignatureExists(ctx context.Context, signature string) (bool, error)
}

// BlobStore fetches the stored file bytes.
type BlobStore interface {
	Download(ctx context.Context, objectKey string) ([]byte, error)
}

// Runner drives ingestion runs. One Runner is shared by all worker slots; it
// holds no per-run state.
type Runner struct {
	uploads UploadStore
	users   UserStore
	blobs   BlobStore
	rows    *validate.RowValidator
}

// NewRunner wires a Runner. signaturePattern selects the accepted fingerprint
// encoding ("" means the default hex-digest form).
func NewRunner(uploads UploadStore, users UserStore, blobs BlobStore, signaturePattern string) (*Runner, error) {
	rows, err := validate.NewRowValidator(signaturePattern, users)
	if err != nil {
		return nil, err
	}
	return &Runner{uploads: uploads, users: users, blobs: blobs, rows: rows}, nil
}

// Run executes one ingestion run for the given upload id. It is safe to call
// more than once for the same id: repeat delivery against a terminal file is
// rejected by the transition guard and reported as a successful no-op.
func (r *Runner) Run(ctx context.Context, fileID string) Outcome {
	up, err := r.uploads.Get(ctx, fileID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// Stale or duplicate dispatch; nothing to do.
			log.Printf("ingest %s: upload not found, skipping", fileID)
			return success(0, 0)
		}
		if model.IsTransient(err) {
			return retryable(fmt.Errorf("load upload: %w", err))
		}
		return fatal(fmt.Errorf("load upload: %w", err))
	}

	data, err := r.blobs.Download(ctx, up.ObjectKey)
	if err != nil {
		// No transition has been recorded yet, so a transient fault here
		// leaves the file pending and the retried attempt can run in full.
		if model.IsTransient(err) {
			return retryable(fmt.Errorf("download %s: %w", up.ObjectKey, err))
		}
		return r.fail(ctx, fileID, fmt.Errorf("download %s: %w", up.ObjectKey, err))
	}

	rr, err := reader.Open(bytes.NewReader(data), filepath.Ext(up.FileName))
	if err != nil {
		return r.fail(ctx, fileID, fmt.Errorf("open %s: %w", up.FileName, err))
	}
	defer rr.Close()

	if !validate.Headers(rr.Headers()) {
		return r.fail(ctx, fileID, fmt.Errorf("%w: %v", ErrInvalidHeaders, rr.Headers()))
	}

	if err := r.uploads.StartProcessing(ctx, fileID); err != nil {
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			// Repeat delivery: the file is already processing, processed or
			// failed.
			log.Printf("ingest %s: not pending, skipping repeat delivery", fileID)
			return success(0, 0)
		}
		if model.IsTransient(err) {
			return retryable(fmt.Errorf("start processing: %w", err))
		}
		return fatal(fmt.Errorf("start processing: %w", err))
	}

	inserted, skipped := 0, 0
	seen := make(map[string]struct{})
	for {
		raw, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return r.fail(ctx, fileID, fmt.Errorf("read row: %w", err))
		}

		rec, ok, err := r.rows.Validate(ctx, raw)
		if err != nil {
			return r.abort(ctx, fileID, fmt.Errorf("validate row: %w", err))
		}
		if !ok {
			skipped++
			continue
		}
		// Uniqueness is also enforced against rows accepted earlier in this
		// run, not just the persisted set.
		if _, dup := seen[rec.FingerPrintSignature]; dup {
			skipped++
			continue
		}

		if err := r.users.Insert(ctx, &rec); err != nil {
			if errors.Is(err, model.ErrDuplicateSignature) {
				// Another run got there first (or a retried run is replaying
				// rows it already inserted). Skip, never abort.
				skipped++
				continue
			}
			return r.abort(ctx, fileID, fmt.Errorf("insert row: %w", err))
		}
		seen[rec.FingerPrintSignature] = struct{}{}
		inserted++
	}

	if err := r.uploads.MarkProcessed(ctx, fileID); err != nil {
		return r.abort(ctx, fileID, fmt.Errorf("mark processed: %w", err))
	}
	log.Printf("ingest %s: processed (%d inserted, %d skipped)", fileID, inserted, skipped)
	return success(inserted, skipped)
}

// fail records a deterministic failure. The MarkFailed edge is valid from both
// pending and processing, so this covers pre-processing and mid-run faults.
func (r *Runner) fail(ctx context.Context, fileID string, cause error) Outcome {
	log.Printf("ingest %s: failed: %v", fileID, cause)
	if err := r.uploads.MarkFailed(ctx, fileID); err != nil && !errors.Is(err, lifecycle.ErrInvalidTransition) {
		log.Printf("ingest %s: mark failed: %v", fileID, err)
	}
	return fatal(cause)
}

// abort handles mid-run errors that may be transient. Transient faults mark
// the file failed best-effort and stay retryable; everything else is fatal.
func (r *Runner) abort(ctx context.Context, fileID string, cause error) Outcome {
	if !model.IsTransient(cause) {
		return r.fail(ctx, fileID, cause)
	}
	log.Printf("ingest %s: transient fault: %v", fileID, cause)
	if err := r.uploads.MarkFailed(ctx, fileID); err != nil && !errors.Is(err, lifecycle.ErrInvalidTransition) {
		log.Printf("ingest %s: mark failed: %v", fileID, err)
	}
	return retryable(cause)
}
