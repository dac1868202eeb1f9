package jobs

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Listener receives a copy of a job after every change. Removed jobs are
// delivered once more with Removed set on the event.
type Listener func(Event)

// Event describes a registry change.
type Event struct {
	Job     Job  `json:"job"`
	Removed bool `json:"removed,omitempty"`
}

// SizeStater reports the size of a file; see fileaccess.Local.
type SizeStater interface {
	StatSize(path string) (int64, error)
}

type entry struct {
	job     Job
	preview []byte
}

// Registry is the single source of truth for tracked jobs.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	order     []string
	bySource  map[string]string
	listeners map[int]Listener
	nextSub   int
	newID     func() string
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:   make(map[string]*entry),
		bySource:  make(map[string]string),
		listeners: make(map[int]Listener),
		newID:     func() string { return uuid.New().String()[:8] },
		now:       time.Now,
	}
}

// Admit starts tracking sourcePath as a pending job.
func (r *Registry) Admit(sourcePath string, originalSize int64) (Job, error) {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return Job{}, fmt.Errorf("resolve %s: %w", sourcePath, err)
	}

	r.mu.Lock()
	if id, ok := r.bySource[abs]; ok {
		r.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s (job %s)", ErrDuplicateSource, abs, id)
	}

	id := r.newID()
	for _, taken := r.entries[id]; taken; _, taken = r.entries[id] {
		id = r.newID()
	}
	now := r.now()
	e := &entry{job: Job{
		ID:           id,
		SourcePath:   abs,
		OriginalSize: originalSize,
		Status:       StatusPending,
		AdmittedAt:   now,
		UpdatedAt:    now,
		Revision:     1,
	}}
	r.entries[id] = e
	r.order = append(r.order, id)
	r.bySource[abs] = id
	job := e.job
	r.mu.Unlock()

	r.notify(Event{Job: job})
	return job, nil
}

// AdmitFile stats path through files and admits it.
func (r *Registry) AdmitFile(files SizeStater, path string) (Job, error) {
	size, err := files.StatSize(path)
	if err != nil {
		return Job{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return r.Admit(path, size)
}

// Remove drops a job and releases its preview buffer. A backend call still in
// flight for the job is orphaned, not cancelled. Progress is keyed by source
// path, so if the same path is admitted and started again while the orphaned
// call runs, its progress events land on the new job (last write wins); its
// result never does, because results are matched by job id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	delete(r.entries, id)
	delete(r.bySource, e.job.SourcePath)
	for i, oid := range r.order {
		if oid == id {
			r.order = slices.Delete(r.order, i, i+1)
			break
		}
	}
	e.preview = nil
	job := e.job
	job.HasPreview = false
	r.mu.Unlock()

	r.notify(Event{Job: job, Removed: true})
	return nil
}

// ResetAll returns every done or error job to pending and clears its result
// fields. Pending and processing jobs are left alone. It returns the number
// of jobs reset.
func (r *Registry) ResetAll() int {
	r.mu.Lock()
	var changed []Job
	now := r.now()
	for _, id := range r.order {
		e := r.entries[id]
		if !e.job.Status.Terminal() {
			continue
		}
		e.job.Status = StatusPending
		e.job.Progress = 0
		e.job.CompressedSize = 0
		e.job.OutputPath = ""
		e.job.Width, e.job.Height = 0, 0
		e.job.ErrorDetail = ""
		e.job.HasPreview = false
		e.job.UpdatedAt = now
		e.job.Revision++
		e.preview = nil
		changed = append(changed, e.job)
	}
	r.mu.Unlock()

	for _, job := range changed {
		r.notify(Event{Job: job})
	}
	return len(changed)
}

// Snapshot returns copies of all jobs in admission order.
func (r *Registry) Snapshot() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Job, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].job)
	}
	return out
}

// Get returns a copy of one job.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return e.job, nil
}

// Preview returns the compressed bytes kept for a done job.
func (r *Registry) Preview(id string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.preview == nil {
		return nil, false
	}
	return e.preview, true
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Subscribe registers l for change events. Call the returned func to stop.
func (r *Registry) Subscribe(l Listener) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.listeners[id] = l
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

func (r *Registry) notify(ev Event) {
	r.mu.RLock()
	ls := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		ls = append(ls, l)
	}
	r.mu.RUnlock()

	for _, l := range ls {
		l(ev)
	}
}

// transition moves job id to status `to`, applying mutate under the lock.
func (r *Registry) transition(id string, to Status, mutate func(*entry)) (Job, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if !canTransition(e.job.Status, to) {
		from := e.job.Status
		r.mu.Unlock()
		return Job{}, fmt.Errorf("%w: job %s %s -> %s", ErrInvalidTransition, id, from, to)
	}
	e.job.Status = to
	e.job.UpdatedAt = r.now()
	e.job.Revision++
	if mutate != nil {
		mutate(e)
	}
	job := e.job
	r.mu.Unlock()

	r.notify(Event{Job: job})
	return job, nil
}

// begin moves a pending job to processing.
func (r *Registry) begin(id string) (Job, error) {
	return r.transition(id, StatusProcessing, func(e *entry) {
		e.job.Progress = 0
	})
}

// beginAll moves every pending job among ids to processing under one lock and
// returns them in the order given. Unknown and non-pending ids are reported
// in skipped.
func (r *Registry) beginAll(ids []string) (started []Job, skipped []string) {
	r.mu.Lock()
	now := r.now()
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		e, ok := r.entries[id]
		if !ok || e.job.Status != StatusPending {
			skipped = append(skipped, id)
			continue
		}
		e.job.Status = StatusProcessing
		e.job.Progress = 0
		e.job.UpdatedAt = now
		e.job.Revision++
		started = append(started, e.job)
	}
	r.mu.Unlock()

	for _, job := range started {
		r.notify(Event{Job: job})
	}
	return started, skipped
}

// complete moves a processing job to done and stores its outcome. The new
// preview replaces any earlier buffer.
func (r *Registry) complete(id string, out outcome) (Job, error) {
	return r.transition(id, StatusDone, func(e *entry) {
		e.job.Progress = 100
		e.job.OutputPath = out.outputPath
		e.job.CompressedSize = out.compressedSize
		e.job.Width, e.job.Height = out.width, out.height
		e.job.ErrorDetail = ""
		e.preview = out.preview
		e.job.HasPreview = out.preview != nil
	})
}

// fail moves a processing job to error.
func (r *Registry) fail(id, detail string) (Job, error) {
	return r.transition(id, StatusError, func(e *entry) {
		e.job.ErrorDetail = detail
	})
}

// setProgress updates the processing job for sourcePath. It reports whether
// anything changed; unknown paths, non-processing jobs and repeats are no-ops.
func (r *Registry) setProgress(sourcePath string, percent int) bool {
	percent = min(max(percent, 0), 100)

	r.mu.Lock()
	id, ok := r.bySource[sourcePath]
	if !ok {
		r.mu.Unlock()
		return false
	}
	e := r.entries[id]
	if e.job.Status != StatusProcessing || e.job.Progress == percent {
		r.mu.Unlock()
		return false
	}
	e.job.Progress = percent
	e.job.UpdatedAt = r.now()
	e.job.Revision++
	job := e.job
	r.mu.Unlock()

	r.notify(Event{Job: job})
	return true
}
