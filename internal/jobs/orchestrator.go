package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"tinyme-go/internal/compressor"
	"tinyme-go/internal/logger"
	"tinyme-go/internal/options"
)

// ByteReader loads compressed output for previews; see fileaccess.Local.
type ByteReader interface {
	ReadBytes(path string) ([]byte, error)
}

// Orchestrator submits jobs to the backend and records the outcome.
// Failures are never retried: each compression attempt corresponds to exactly
// one pending -> processing transition.
type Orchestrator struct {
	registry *Registry
	backend  compressor.Backend
	previews ByteReader
	log      *logrus.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPreviews reads every compressed output back through r and keeps the
// bytes as the job's preview. A failed read marks that job as error.
func WithPreviews(r ByteReader) Option {
	return func(o *Orchestrator) {
		o.previews = r
	}
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// NewOrchestrator creates an Orchestrator over registry and backend.
func NewOrchestrator(registry *Registry, backend compressor.Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		backend:  backend,
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BatchResult summarises a CompressBatch call.
type BatchResult struct {
	Submitted []string `json:"submitted"`
	Skipped   []string `json:"skipped,omitempty"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
}

// CompressOne compresses a single pending job. Backend and post-processing
// failures put the job in error and are returned to the caller.
func (o *Orchestrator) CompressOne(ctx context.Context, jobID string, opts options.Options, outputDir string) (Job, error) {
	if outputDir == "" {
		return Job{}, ErrNoOutputDirectory
	}
	if err := opts.Validate(); err != nil {
		return Job{}, err
	}

	job, err := o.registry.begin(jobID)
	if err != nil {
		return Job{}, err
	}
	log := logger.WithJob(o.log, job.ID, job.SourcePath)
	log.WithField("options", opts.String()).Debug("job processing")

	res, err := o.backend.CompressSingle(ctx, job.SourcePath, outputDir, opts)
	if err != nil {
		return o.markFailed(log, job.ID, err)
	}
	return o.finish(log, job.ID, res)
}

// CompressBatch submits every pending job among jobIDs in one backend call.
// Jobs that are unknown or not pending are skipped. Results are matched to
// jobs by position, never by file name, and one job's failure does not affect
// its siblings.
func (o *Orchestrator) CompressBatch(ctx context.Context, jobIDs []string, opts options.Options, outputDir string) (BatchResult, error) {
	if outputDir == "" {
		return BatchResult{}, ErrNoOutputDirectory
	}
	if err := opts.Validate(); err != nil {
		return BatchResult{}, err
	}

	started, skipped := o.registry.beginAll(jobIDs)
	result := BatchResult{Skipped: skipped}
	if len(started) == 0 {
		o.log.WithField("skipped", len(skipped)).Debug("batch has no pending jobs")
		return result, nil
	}

	paths := make([]string, len(started))
	for i, job := range started {
		paths[i] = job.SourcePath
		result.Submitted = append(result.Submitted, job.ID)
	}
	batchLog := logger.WithOperation(o.log, "compress_batch").WithFields(logrus.Fields{
		"jobs":    len(started),
		"skipped": len(skipped),
		"options": opts.String(),
	})
	batchLog.Info("batch submitted")

	results, err := o.backend.CompressBatch(ctx, paths, outputDir, opts)
	if err != nil {
		batchLog.WithError(err).Warn("batch call failed")
		for _, job := range started {
			_, _ = o.markFailed(logger.WithJob(o.log, job.ID, job.SourcePath), job.ID, err)
		}
		result.Failed = len(started)
		return result, nil
	}
	if len(results) != len(started) {
		batchLog.Warnf("backend returned %d results for %d inputs", len(results), len(started))
	}

	for i, job := range started {
		log := logger.WithJob(o.log, job.ID, job.SourcePath)
		var jobErr error
		if i >= len(results) {
			_, jobErr = o.markFailed(log, job.ID, &compressor.BackendFailure{Path: job.SourcePath, Message: "no result returned"})
		} else if results[i].Err != nil {
			_, jobErr = o.markFailed(log, job.ID, results[i].Err)
		} else {
			_, jobErr = o.finish(log, job.ID, results[i])
		}
		if jobErr != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}

	batchLog.WithFields(logrus.Fields{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("batch finished")
	return result, nil
}

// finish runs post-processing and moves the job to done.
func (o *Orchestrator) finish(log *logrus.Entry, id string, res compressor.Result) (Job, error) {
	out := outcome{
		outputPath:     res.OutputPath,
		compressedSize: res.CompressedSize,
		width:          res.Width,
		height:         res.Height,
	}
	if o.previews != nil {
		data, err := o.previews.ReadBytes(res.OutputPath)
		if err != nil {
			return o.markFailed(log, id, fmt.Errorf("load preview: %w", err))
		}
		out.preview = data
	}

	job, err := o.registry.complete(id, out)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			log.Debug("job removed while in flight, result dropped")
		}
		return Job{}, err
	}
	log.WithFields(logrus.Fields{
		"output":          job.OutputPath,
		"compressed_size": job.CompressedSize,
	}).Info("job done")
	return job, nil
}

// markFailed moves the job to error and returns cause.
func (o *Orchestrator) markFailed(log *logrus.Entry, id string, cause error) (Job, error) {
	log.WithError(cause).Warn("job failed")
	job, err := o.registry.fail(id, cause.Error())
	if err != nil {
		log.WithError(err).Debug("failure not recorded")
		return Job{}, cause
	}
	return job, cause
}
