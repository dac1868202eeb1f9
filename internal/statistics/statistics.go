// Package statistics aggregates job state for display.
package statistics

import (
	"fmt"
	"strings"

	"tinyme-go/internal/jobs"
)

// Summary is derived from a registry snapshot.
type Summary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`

	// OriginalBytes and CompressedBytes cover completed jobs only.
	OriginalBytes   int64 `json:"original_bytes"`
	CompressedBytes int64 `json:"compressed_bytes"`
	// CompressionRatio is 1 - CompressedBytes/OriginalBytes, 0 with nothing completed.
	CompressionRatio float64 `json:"compression_ratio"`

	// TotalOriginalBytes covers every tracked job.
	TotalOriginalBytes int64 `json:"total_original_bytes"`
	// OverallProgress averages progress over all jobs, counting done as 100.
	OverallProgress int `json:"overall_progress"`

	Errors []JobError `json:"errors,omitempty"`
}

// JobError pairs a failed source with its detail.
type JobError struct {
	SourcePath string `json:"source_path"`
	Detail     string `json:"detail"`
}

// Compute builds a Summary from snapshot.
func Compute(snapshot []jobs.Job) Summary {
	s := Summary{Total: len(snapshot)}
	progressSum := 0
	for _, job := range snapshot {
		s.TotalOriginalBytes += job.OriginalSize
		switch job.Status {
		case jobs.StatusPending:
			s.Pending++
		case jobs.StatusProcessing:
			s.Processing++
			progressSum += job.Progress
		case jobs.StatusDone:
			s.Completed++
			progressSum += 100
		case jobs.StatusError:
			s.Failed++
			progressSum += 100
			s.Errors = append(s.Errors, JobError{SourcePath: job.SourcePath, Detail: job.ErrorDetail})
		}
		if job.Status == jobs.StatusDone && job.CompressedSize > 0 {
			s.OriginalBytes += job.OriginalSize
			s.CompressedBytes += job.CompressedSize
		}
	}
	if s.OriginalBytes > 0 {
		s.CompressionRatio = 1 - float64(s.CompressedBytes)/float64(s.OriginalBytes)
	}
	if s.Total > 0 {
		s.OverallProgress = progressSum / s.Total
	}
	return s
}

// Saved returns the bytes saved over completed jobs.
func (s Summary) Saved() int64 {
	return s.OriginalBytes - s.CompressedBytes
}

// String returns a formatted summary.
func (s Summary) String() string {
	return fmt.Sprintf(`Compression Summary:

Files:
		Total: %d
		Completed: %d
		Failed: %d
		Pending: %d
		Processing: %d

Size:
		Original: %s
		Compressed: %s
		Saved: %s (%.1f%%)`,
		s.Total, s.Completed, s.Failed, s.Pending, s.Processing,
		FormatBytes(s.OriginalBytes),
		FormatBytes(s.CompressedBytes),
		FormatBytes(s.Saved()), s.CompressionRatio*100)
}

// ErrorSummary lists failed jobs, capped at ten lines.
func (s Summary) ErrorSummary() string {
	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Errors (%d total):\n", len(s.Errors))
	for i, e := range s.Errors {
		if i >= 10 {
			fmt.Fprintf(&b, "  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		fmt.Fprintf(&b, "  %s: %s\n", e.SourcePath, e.Detail)
	}
	return b.String()
}

// FormatBytes returns a human-readable string for a byte count.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < 0 {
		return "-" + FormatBytes(-bytes)
	}
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
