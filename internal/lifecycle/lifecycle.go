// Package lifecycle defines the processing status of an uploaded file and the
// transition table that governs it. Status values only change through the
// guarded mutators on the stores; there is no direct assignment path, so a
// stored status always reflects a real lifecycle event.
package lifecycle

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of an uploaded file.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

// ErrInvalidTransition is returned when a requested edge is not in the
// transition table. The status is left unchanged.
var ErrInvalidTransition = errors.New("invalid status transition")

// edges holds the five allowed transitions:
//
//	pending    -> processing   worker begins ingestion
//	pending    -> failed       pre-processing error (bad headers)
//	processing -> processed    all rows handled
//	processing -> failed       fatal error during the run
//	processed  -> failed       external correction
var edges = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusProcessed, StatusFailed},
	StatusProcessed:  {StatusFailed},
}

// Valid reports whether s is one of the four defined states.
func Valid(s Status) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusProcessed, StatusFailed:
		return true
	}
	return false
}

// Transition validates the edge from -> to. It returns nil when the edge is in
// the table and ErrInvalidTransition (wrapped with both states) otherwise.
func Transition(from, to Status) error {
	for _, next := range edges[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Sources returns every state from which the edge to `to` is allowed. Stores
// use this to build atomic conditional updates (UPDATE ... WHERE status IN
// sources) so two workers racing on the same file cannot both win.
func Sources(to Status) []Status {
	var out []Status
	for from, targets := range edges {
		for _, next := range targets {
			if next == to {
				out = append(out, from)
			}
		}
	}
	return out
}
