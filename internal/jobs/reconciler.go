package jobs

import (
	"context"

	"github.com/sirupsen/logrus"

	"tinyme-go/internal/compressor"
	"tinyme-go/internal/logger"
)

// Reconciler applies backend progress events to the registry. Events are
// last-write-wins per path and only touch jobs that are still processing, so
// late events after done or error are dropped.
type Reconciler struct {
	registry *Registry
	log      *logrus.Logger
}

// NewReconciler creates a Reconciler for registry.
func NewReconciler(registry *Registry, log *logrus.Logger) *Reconciler {
	if log == nil {
		log = logger.Discard()
	}
	return &Reconciler{registry: registry, log: log}
}

// Apply records one event and reports whether a job changed.
func (r *Reconciler) Apply(ev compressor.ProgressEvent) bool {
	applied := r.registry.setProgress(ev.SourcePath, ev.Percent)
	if !applied {
		r.log.WithFields(logrus.Fields{
			"file":    ev.SourcePath,
			"percent": ev.Percent,
		}).Trace("progress event discarded")
	}
	return applied
}

// Run drains events sequentially until ctx is done or events is closed.
func (r *Reconciler) Run(ctx context.Context, events <-chan compressor.ProgressEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Apply(ev)
		}
	}
}
