package statistics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tinyme-go/internal/jobs"
)

func TestComputeEmptyIsZero(t *testing.T) {
	s := Compute(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.CompressionRatio)
	assert.Zero(t, s.OverallProgress)
	assert.Contains(t, s.String(), "Saved: 0 B (0.0%)")
}

func TestComputeRatioOverCompletedOnly(t *testing.T) {
	snap := []jobs.Job{
		{SourcePath: "/a", OriginalSize: 1000, Status: jobs.StatusDone, CompressedSize: 250, Progress: 100},
		{SourcePath: "/b", OriginalSize: 1000, Status: jobs.StatusError, ErrorDetail: "boom"},
		{SourcePath: "/c", OriginalSize: 1000, Status: jobs.StatusDone, CompressedSize: 750, Progress: 100},
		{SourcePath: "/d", OriginalSize: 500, Status: jobs.StatusPending},
		{SourcePath: "/e", OriginalSize: 500, Status: jobs.StatusProcessing, Progress: 40},
	}
	s := Compute(snap)

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Processing)
	assert.Equal(t, int64(2000), s.OriginalBytes)
	assert.Equal(t, int64(1000), s.CompressedBytes)
	assert.InDelta(t, 0.5, s.CompressionRatio, 1e-9)
	assert.Equal(t, int64(4000), s.TotalOriginalBytes)
	assert.Equal(t, (100+100+100+0+40)/5, s.OverallProgress)
	assert.Equal(t, []JobError{{SourcePath: "/b", Detail: "boom"}}, s.Errors)
}

func TestErrorSummary(t *testing.T) {
	assert.Equal(t, "No errors occurred during processing", Summary{}.ErrorSummary())

	var errs []JobError
	for i := 0; i < 12; i++ {
		errs = append(errs, JobError{SourcePath: "/x", Detail: "bad"})
	}
	out := Summary{Errors: errs}.ErrorSummary()
	assert.Contains(t, out, "Errors (12 total)")
	assert.Contains(t, out, "... and 2 more errors")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))
	assert.Equal(t, "-1.0 KB", FormatBytes(-1024))
}
