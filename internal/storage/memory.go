// Package storage contains in-memory implementations of the ingestion stores.
// They back the package tests and local development; production uses the pgx
// repositories, which implement the same interfaces.
package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/lifecycle"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/model"
)

// MemoryUploadStore keeps FileUpload rows in a map guarded by an RWMutex so
// concurrent readers do not contend with each other.
type MemoryUploadStore struct {
	mu      sync.RWMutex
	uploads map[string]*model.FileUpload
}

// NewMemoryUploadStore constructs an empty store.
func NewMemoryUploadStore() *MemoryUploadStore {
	return &MemoryUploadStore{uploads: make(map[string]*model.FileUpload)}
}

// Create inserts a new upload in the pending state.
func (m *MemoryUploadStore) Create(ctx context.Context, up *model.FileUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	up.Status = lifecycle.StatusPending
	up.CreatedAt = now
	up.UpdatedAt = now
	cp := *up
	m.uploads[up.ID] = &cp
	return nil
}

// Get returns a copy of the upload so callers cannot mutate shared state.
func (m *MemoryUploadStore) Get(ctx context.Context, id string) (*model.FileUpload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	up, ok := m.uploads[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *up
	return &cp, nil
}

// List returns a page of uploads, newest first, plus the total count.
func (m *MemoryUploadStore) List(ctx context.Context, limit, offset int) ([]model.FileUpload, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]model.FileUpload, 0, len(m.uploads))
	for _, up := range m.uploads {
		all = append(all, *up)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	if offset >= total {
		return []model.FileUpload{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// StartProcessing applies the pending -> processing edge.
func (m *MemoryUploadStore) StartProcessing(ctx context.Context, id string) error {
	return m.transition(id, lifecycle.StatusProcessing, lifecycle.StatusPending)
}

// MarkProcessed applies the processing -> processed edge.
func (m *MemoryUploadStore) MarkProcessed(ctx context.Context, id string) error {
	return m.transition(id, lifecycle.StatusProcessed, lifecycle.StatusProcessing)
}

// MarkFailed applies the failed edge from pending or processing.
func (m *MemoryUploadStore) MarkFailed(ctx context.Context, id string) error {
	return m.transition(id, lifecycle.StatusFailed, lifecycle.StatusPending, lifecycle.StatusProcessing)
}

// MarkCorrectionFailed applies the processed -> failed edge used by external
// correction flows.
func (m *MemoryUploadStore) MarkCorrectionFailed(ctx context.Context, id string) error {
	return m.transition(id, lifecycle.StatusFailed, lifecycle.StatusProcessed)
}

// transition is the single mutation path: it checks the precondition and the
// table under the write lock, mirroring the conditional UPDATE used by the
// pgx store.
func (m *MemoryUploadStore) transition(id string, to lifecycle.Status, from ...lifecycle.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[id]
	if !ok {
		return model.ErrNotFound
	}
	for _, f := range from {
		if up.Status == f {
			if err := lifecycle.Transition(f, to); err != nil {
				return err
			}
			up.Status = to
			up.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", lifecycle.ErrInvalidTransition, up.Status, to)
}

// MemoryUserStore keeps user records in insertion order with a signature
// index enforcing uniqueness, standing in for the database unique constraint.
type MemoryUserStore struct {
	mu         sync.RWMutex
	records    []model.UserRecord
	signatures map[string]struct{}
	nextID     int64
}

// NewMemoryUserStore constructs an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{signatures: make(map[string]struct{}), nextID: 1}
}

// Insert appends a record, rejecting duplicate signatures.
func (m *MemoryUserStore) Insert(ctx context.Context, rec *model.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.signatures[rec.FingerPrintSignature]; dup {
		return model.ErrDuplicateSignature
	}
	rec.ID = m.nextID
	m.nextID++
	rec.TimeAdded = time.Now().UTC()
	m.signatures[rec.FingerPrintSignature] = struct{}{}
	m.records = append(m.records, *rec)
	return nil
}

// SignatureExists reports whether a signature is already persisted.
func (m *MemoryUserStore) SignatureExists(ctx context.Context, signature string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.signatures[signature]
	return ok, nil
}

// All returns a copy of every record, newest first.
func (m *MemoryUserStore) All(ctx context.Context) ([]model.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.UserRecord, len(m.records))
	for i, rec := range m.records {
		out[len(m.records)-1-i] = rec
	}
	return out, nil
}

// Count returns the number of persisted records.
func (m *MemoryUserStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// MemoryBlobStore is a map-backed stand-in for the object store.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryBlobStore constructs an empty blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string][]byte)}
}

// Upload stores a copy of data under objectKey.
func (m *MemoryBlobStore) Upload(ctx context.Context, objectKey string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[objectKey] = cp
	return nil
}

// UploadStream drains r and stores the bytes under objectKey. size and
// contentType are accepted for interface parity with the object store.
func (m *MemoryBlobStore) UploadStream(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return m.Upload(ctx, objectKey, data)
}

// Download fetches the bytes stored under objectKey.
func (m *MemoryBlobStore) Download(ctx context.Context, objectKey string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[objectKey]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}
