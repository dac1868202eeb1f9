package compressor

import (
	"context"
	"fmt"
	"time"

	"tinyme-go/internal/options"
)

// ProgressEvent reports how far the backend got with one source file.
// Delivery is best effort; the final Result is authoritative.
type ProgressEvent struct {
	SourcePath string `json:"source_path"`
	Percent    int    `json:"percent"`
}

// Result describes the outcome of compressing a single file.
type Result struct {
	SourcePath     string
	OutputPath     string
	OriginalSize   int64
	CompressedSize int64
	Width          int
	Height         int
	StartedAt      time.Time
	FinishedAt     time.Time
	// Err is a *BackendFailure when the file could not be compressed.
	Err error
}

// BackendFailure is the error attached to a failed compression.
type BackendFailure struct {
	Path    string
	Message string
	Err     error
}

func (f *BackendFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("compress %s: %s: %v", f.Path, f.Message, f.Err)
	}
	return fmt.Sprintf("compress %s: %s", f.Path, f.Message)
}

func (f *BackendFailure) Unwrap() error {
	return f.Err
}

// Backend performs the pixel work for the job orchestrator.
type Backend interface {
	// CompressSingle compresses one file into outputDir.
	CompressSingle(ctx context.Context, sourcePath, outputDir string, opts options.Options) (Result, error)
	// CompressBatch returns exactly one Result per input path, in input order.
	// A non-nil error means the call as a whole failed and no result is usable.
	CompressBatch(ctx context.Context, sourcePaths []string, outputDir string, opts options.Options) ([]Result, error)
	// Progress streams ProgressEvents for in-flight files.
	Progress() <-chan ProgressEvent
}
