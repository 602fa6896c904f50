// Package model contains the domain types shared across the API, the worker
// and the stores.
package model

import (
	"time"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/lifecycle"
)

// FileUpload is the metadata row tracked for every uploaded file. The blob
// itself lives in object storage under ObjectKey; Status is only mutated
// through the stores' guarded lifecycle transitions.
type FileUpload struct {
	ID        string           `json:"id"`
	FileName  string           `json:"file"`
	ObjectKey string           `json:"-"`
	Status    lifecycle.Status `json:"status"`
	CreatedAt time.Time        `json:"-"`
	UpdatedAt time.Time        `json:"-"`
}

// RawRecord is one decoded line of an uploaded file: field name -> raw string
// value. It only exists within a single ingestion run and is never persisted.
type RawRecord map[string]string
