package jobs

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"tinyme-go/internal/compressor"
	"tinyme-go/internal/logger"
)

// Session wires a Registry, Orchestrator and Reconciler around one backend
// and owns the goroutine draining the backend's progress stream.
type Session struct {
	Registry     *Registry
	Orchestrator *Orchestrator
	Reconciler   *Reconciler

	backend compressor.Backend
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSession builds a session. opts are passed to the Orchestrator.
func NewSession(backend compressor.Backend, log *logrus.Logger, opts ...Option) *Session {
	if log == nil {
		log = logger.Discard()
	}
	reg := NewRegistry()
	return &Session{
		Registry:     reg,
		Orchestrator: NewOrchestrator(reg, backend, append([]Option{WithLogger(log)}, opts...)...),
		Reconciler:   NewReconciler(reg, log),
		backend:      backend,
	}
}

// Start begins draining progress events. Close stops it.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Reconciler.Run(ctx, s.backend.Progress())
	}()
}

// Close stops the progress subscription and waits for it to exit.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
