// Package jobs tracks compression jobs and drives them through the backend.
//
// The Registry owns job state. Status transitions are unexported so that only
// the Orchestrator and Reconciler in this package can move a job:
//
//	pending -> processing -> done | error
//	done | error -> pending   (ResetAll only)
package jobs

import (
	"errors"
	"time"
)

var (
	// ErrDuplicateSource is returned when admitting a path that is already tracked.
	ErrDuplicateSource = errors.New("source already tracked")
	// ErrJobNotFound is returned for unknown or removed job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when a job is not in a state that allows the move.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNoOutputDirectory is returned when a compression is started without an output directory.
	ErrNoOutputDirectory = errors.New("no output directory")
)

// Status is a job lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Terminal reports whether s is done or error.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Job is a tracked source file and its compression state. Values handed out
// by the Registry are copies.
type Job struct {
	ID             string    `json:"id"`
	SourcePath     string    `json:"source_path"`
	OriginalSize   int64     `json:"original_size"`
	Status         Status    `json:"status"`
	Progress       int       `json:"progress"`
	CompressedSize int64     `json:"compressed_size,omitempty"`
	OutputPath     string    `json:"output_path,omitempty"`
	Width          int       `json:"width,omitempty"`
	Height         int       `json:"height,omitempty"`
	ErrorDetail    string    `json:"error,omitempty"`
	HasPreview     bool      `json:"has_preview"`
	AdmittedAt     time.Time `json:"admitted_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	// Revision increases with every change. Listeners run outside the
	// registry lock, so an event with a lower Revision than one already
	// seen for the same job is stale.
	Revision uint64 `json:"revision"`
}

// outcome is what the orchestrator records on a successful compression.
type outcome struct {
	outputPath     string
	compressedSize int64
	width, height  int
	preview        []byte
}

func canTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusDone || to == StatusError
	case StatusDone, StatusError:
		return to == StatusPending
	default:
		return false
	}
}
