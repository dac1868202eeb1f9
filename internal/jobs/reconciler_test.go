package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyme-go/internal/compressor"
)

func processingJob(t *testing.T, reg *Registry, path string) Job {
	t.Helper()
	job, err := reg.Admit(path, 100)
	require.NoError(t, err)
	job, err = reg.begin(job.ID)
	require.NoError(t, err)
	return job
}

func TestReconcilerDuplicateIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	rec := NewReconciler(reg, nil)
	job := processingJob(t, reg, "/p/a.jpg")

	assert.True(t, rec.Apply(compressor.ProgressEvent{SourcePath: "/p/a.jpg", Percent: 42}))
	assert.False(t, rec.Apply(compressor.ProgressEvent{SourcePath: "/p/a.jpg", Percent: 42}))

	got, err := reg.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.Progress)
}

func TestReconcilerLastWriteWins(t *testing.T) {
	reg := NewRegistry()
	rec := NewReconciler(reg, nil)
	job := processingJob(t, reg, "/p/a.jpg")

	rec.Apply(compressor.ProgressEvent{SourcePath: "/p/a.jpg", Percent: 80})
	rec.Apply(compressor.ProgressEvent{SourcePath: "/p/a.jpg", Percent: 30})

	got, _ := reg.Get(job.ID)
	assert.Equal(t, 30, got.Progress)
}

func TestReconcilerIgnoresStaleEventAfterDone(t *testing.T) {
	reg := NewRegistry()
	rec := NewReconciler(reg, nil)
	job := processingJob(t, reg, "/p/a.jpg")

	_, err := reg.complete(job.ID, outcome{outputPath: "/out/a.jpg", compressedSize: 10})
	require.NoError(t, err)

	assert.False(t, rec.Apply(compressor.ProgressEvent{SourcePath: "/p/a.jpg", Percent: 30}))
	got, _ := reg.Get(job.ID)
	assert.Equal(t, StatusDone, got.Status)
	assert.Equal(t, 100, got.Progress)
}

func TestReconcilerIgnoresErrorPendingAndUnknown(t *testing.T) {
	reg := NewRegistry()
	rec := NewReconciler(reg, nil)

	failed := processingJob(t, reg, "/p/failed.jpg")
	_, err := reg.fail(failed.ID, "boom")
	require.NoError(t, err)
	pending, err := reg.Admit("/p/pending.jpg", 1)
	require.NoError(t, err)

	assert.False(t, rec.Apply(compressor.ProgressEvent{SourcePath: "/p/failed.jpg", Percent: 10}))
	assert.False(t, rec.Apply(compressor.ProgressEvent{SourcePath: "/p/pending.jpg", Percent: 10}))
	assert.False(t, rec.Apply(compressor.ProgressEvent{SourcePath: "/p/never.jpg", Percent: 10}))

	got, _ := reg.Get(pending.ID)
	assert.Zero(t, got.Progress)
}

func TestReconcilerClampsPercent(t *testing.T) {
	reg := NewRegistry()
	rec := NewReconciler(reg, nil)
	job := processingJob(t, reg, "/p/a.jpg")

	rec.Apply(compressor.ProgressEvent{SourcePath: "/p/a.jpg", Percent: 140})
	got, _ := reg.Get(job.ID)
	assert.Equal(t, 100, got.Progress)

	rec.Apply(compressor.ProgressEvent{SourcePath: "/p/a.jpg", Percent: -3})
	got, _ = reg.Get(job.ID)
	assert.Equal(t, 0, got.Progress)
}

func TestReconcilerRunDrainsUntilClosed(t *testing.T) {
	reg := NewRegistry()
	rec := NewReconciler(reg, nil)
	job := processingJob(t, reg, "/p/a.jpg")

	events := make(chan compressor.ProgressEvent, 3)
	events <- compressor.ProgressEvent{SourcePath: "/p/a.jpg", Percent: 10}
	events <- compressor.ProgressEvent{SourcePath: "/p/other.jpg", Percent: 50}
	events <- compressor.ProgressEvent{SourcePath: "/p/a.jpg", Percent: 60}
	close(events)

	done := make(chan struct{})
	go func() {
		rec.Run(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after channel close")
	}
	got, _ := reg.Get(job.ID)
	assert.Equal(t, 60, got.Progress)
}

func TestReconcilerRunStopsOnContext(t *testing.T) {
	rec := NewReconciler(NewRegistry(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		rec.Run(ctx, make(chan compressor.ProgressEvent))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestBeginResetsProgress(t *testing.T) {
	reg := NewRegistry()
	job := processingJob(t, reg, "/p/a.jpg")
	require.True(t, reg.setProgress("/p/a.jpg", 70))
	_, err := reg.fail(job.ID, "boom")
	require.NoError(t, err)

	reg.ResetAll()
	got, err := reg.begin(job.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Progress)
}

func TestCanTransition(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:    {StatusProcessing},
		StatusProcessing: {StatusDone, StatusError},
		StatusDone:       {StatusPending},
		StatusError:      {StatusPending},
	}
	all := []Status{StatusPending, StatusProcessing, StatusDone, StatusError}
	for from, tos := range allowed {
		for _, to := range all {
			want := false
			for _, ok := range tos {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, canTransition(from, to), "%s -> %s", from, to)
		}
	}
}

// TestReconcilerReadmittedPathTakesProgress verifies progress for a path follows
// the job currently processing it, even after the original job was removed.
func TestReconcilerReadmittedPathTakesProgress(t *testing.T) {
	reg := NewRegistry()
	rec := NewReconciler(reg, nil)
	old := processingJob(t, reg, "/p/a.jpg")
	require.NoError(t, reg.Remove(old.ID))

	assert.False(t, rec.Apply(compressor.ProgressEvent{SourcePath: "/p/a.jpg", Percent: 40}))

	fresh := processingJob(t, reg, "/p/a.jpg")
	require.NotEqual(t, old.ID, fresh.ID)
	assert.True(t, rec.Apply(compressor.ProgressEvent{SourcePath: "/p/a.jpg", Percent: 60}))

	got, err := reg.Get(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.Progress)

	// the orphaned call's result cannot complete the new job
	_, err = reg.complete(old.ID, outcome{outputPath: "/out/a.jpg", compressedSize: 10})
	assert.ErrorIs(t, err, ErrJobNotFound)
	got, _ = reg.Get(fresh.ID)
	assert.Equal(t, StatusProcessing, got.Status)
}
