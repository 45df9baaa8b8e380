// Package violation provides use cases for the append-only violation log:
// asynchronous recording of denied requests and read-side analytics over
// the recorded history.
package violation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"quotaguard/internal/domain/entity"
	"quotaguard/internal/observability/metrics"
	"quotaguard/internal/repository"
)

const (
	// defaultBufferSize is the capacity of the recording queue.
	defaultBufferSize = 1024

	// insertTimeout bounds a single insert so a slow store cannot wedge
	// the worker.
	insertTimeout = 5 * time.Second

	// dropLogInterval throttles the queue-full warning.
	dropLogInterval = 10 * time.Second
)

// Recorder writes violation records to the repository asynchronously.
//
// Record never blocks the caller: records are queued on a buffered
// channel and a single worker goroutine drains them. When the queue is
// full the record is dropped and an operational warning is logged, so a
// slow or unavailable store can never slow down request handling.
type Recorder struct {
	repo    repository.ViolationRepository
	queue   chan *entity.ViolationRecord
	dropLog *rate.Limiter

	startOnce sync.Once
	closeOnce sync.Once
	started   bool
	done      chan struct{}
}

// NewRecorder creates a Recorder with the given queue capacity.
// A non-positive bufferSize falls back to the default.
func NewRecorder(repo repository.ViolationRepository, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Recorder{
		repo:    repo,
		queue:   make(chan *entity.ViolationRecord, bufferSize),
		dropLog: rate.NewLimiter(rate.Every(dropLogInterval), 1),
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutine. It returns immediately and is
// safe to call more than once; only the first call has an effect. The
// worker runs until ctx is cancelled or Close is called.
func (r *Recorder) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.started = true
		go r.run(ctx)
	})
}

// Record queues one violation for persistence and returns immediately.
// A nil record is ignored. If the queue is full the record is dropped.
func (r *Recorder) Record(v *entity.ViolationRecord) {
	if v == nil {
		return
	}
	select {
	case r.queue <- v:
	default:
		if r.dropLog.Allow() {
			slog.Warn("violation queue full, dropping record",
				slog.String("identifier", v.Identifier),
				slog.String("violation_type", v.Type.String()),
				slog.Int("queue_capacity", cap(r.queue)))
		}
	}
}

// Close stops the worker after draining records already queued.
// Safe to call more than once.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
		if r.started {
			<-r.done
		}
	})
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-r.queue:
			if !ok {
				return
			}
			r.insert(v)
		}
	}
}

// insert persists one record with its own timeout. Failures are logged
// and swallowed: recording is best-effort and must never surface to the
// request path.
func (r *Recorder) insert(v *entity.ViolationRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := r.repo.Insert(ctx, v); err != nil {
		slog.Error("failed to persist violation record",
			slog.String("identifier", v.Identifier),
			slog.String("violation_type", v.Type.String()),
			slog.String("error", err.Error()))
		return
	}
	metrics.RecordViolation(v.Type)
}
