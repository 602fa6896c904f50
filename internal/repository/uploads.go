// Package repository wraps all SQL used by the API and the worker. Lifecycle
// transitions are conditional updates: a transition only lands if the row is
// still in one of the edge's source states, so concurrent workers cannot race
// a file into an inconsistent status.
package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/lifecycle"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/model"
)

// UploadRepository persists FileUpload rows.
type UploadRepository struct {
	pool *pgxpool.Pool
}

// NewUploadRepository constructs a repository.
func NewUploadRepository(pool *pgxpool.Pool) *UploadRepository {
	return &UploadRepository{pool: pool}
}

// Create inserts a pending upload.
func (r *UploadRepository) Create(ctx context.Context, up *model.FileUpload) error {
	now := time.Now().UTC()
	up.Status = lifecycle.StatusPending
	up.CreatedAt = now
	up.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO file_uploads (id, file_name, object_key, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, up.ID, up.FileName, up.ObjectKey, up.Status, up.CreatedAt, up.UpdatedAt)
	if err != nil {
		return classify("insert upload", err)
	}
	return nil
}

// Get returns an upload by id.
func (r *UploadRepository) Get(ctx context.Context, id string) (*model.FileUpload, error) {
	var up model.FileUpload
	row := r.pool.QueryRow(ctx, `
		SELECT id, file_name, object_key, status, created_at, updated_at
		FROM file_uploads WHERE id=$1
	`, id)
	if err := row.Scan(&up.ID, &up.FileName, &up.ObjectKey, &up.Status, &up.CreatedAt, &up.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, classify("select upload", err)
	}
	return &up, nil
}

// List returns a page of uploads, newest first, plus the total count.
func (r *UploadRepository) List(ctx context.Context, limit, offset int) ([]model.FileUpload, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM file_uploads`).Scan(&total); err != nil {
		return nil, 0, classify("count uploads", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, file_name, object_key, status, created_at, updated_at
		FROM file_uploads ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, classify("select uploads", err)
	}
	defer rows.Close()
	var out []model.FileUpload
	for rows.Next() {
		var up model.FileUpload
		if err := rows.Scan(&up.ID, &up.FileName, &up.ObjectKey, &up.Status, &up.CreatedAt, &up.UpdatedAt); err != nil {
			return nil, 0, classify("scan upload", err)
		}
		out = append(out, up)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("iterate uploads", err)
	}
	return out, total, nil
}

// StartProcessing applies the pending -> processing edge.
func (r *UploadRepository) StartProcessing(ctx context.Context, id string) error {
	return r.transition(ctx, id, lifecycle.StatusProcessing, lifecycle.StatusPending)
}

// MarkProcessed applies the processing -> processed edge.
func (r *UploadRepository) MarkProcessed(ctx context.Context, id string) error {
	return r.transition(ctx, id, lifecycle.StatusProcessed, lifecycle.StatusProcessing)
}

// MarkFailed applies the failed edge from pending or processing.
func (r *UploadRepository) MarkFailed(ctx context.Context, id string) error {
	return r.transition(ctx, id, lifecycle.StatusFailed, lifecycle.StatusPending, lifecycle.StatusProcessing)
}

// MarkCorrectionFailed applies the processed -> failed edge used by external
// correction flows.
func (r *UploadRepository) MarkCorrectionFailed(ctx context.Context, id string) error {
	return r.transition(ctx, id, lifecycle.StatusFailed, lifecycle.StatusProcessed)
}

func (r *UploadRepository) transition(ctx context.Context, id string, to lifecycle.Status, from ...lifecycle.Status) error {
	sources := make([]string, len(from))
	for i, f := range from {
		if err := lifecycle.Transition(f, to); err != nil {
			return err
		}
		sources[i] = string(f)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE file_uploads SET status=$1, updated_at=$2
		WHERE id=$3 AND status = ANY($4)
	`, to, time.Now().UTC(), id, sources)
	if err != nil {
		return classify("update status", err)
	}
	if tag.RowsAffected() == 0 {
		current, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s -> %s", lifecycle.ErrInvalidTransition, current.Status, to)
	}
	return nil
}

// classify wraps store errors so callers can separate retryable connectivity
// faults from deterministic failures.
func classify(op string, err error) error {
	if isTransient(err) {
		return model.Transient(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTransient(err error) bool {
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions. Class 53: insufficient resources.
		// 40001/40P01: serialization failure and deadlock.
		switch {
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "53"),
			pgErr.Code == "40001", pgErr.Code == "40P01",
			pgErr.Code == "57P01":
			return true
		}
	}
	return errors.Is(err, context.DeadlineExceeded)
}
