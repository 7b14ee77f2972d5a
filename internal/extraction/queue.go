package extraction

import (
	"context"
	"errors"
	"sync"
	"time"

	"docinsight-backend/internal/shared/metrics"
	"docinsight-backend/internal/shared/telemetry"
)

// Job identifies one document awaiting text extraction.
type Job struct {
	DocumentID string
	FilePath   string
	MimeType   string
	FileName   string
}

// Extractor turns a stored blob into plain text.
type Extractor interface {
	Extract(ctx context.Context, job Job) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, job Job) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, job Job) (string, error) {
	return f(ctx, job)
}

// ResultApplier records the outcome of an extraction on the document row.
type ResultApplier interface {
	ApplyExtractionResult(ctx context.Context, documentID string, text string, extractErr error) error
}

// ErrQueueFull is returned by Enqueue when the buffer is saturated.
var ErrQueueFull = errors.New("extraction queue full")

const defaultBuffer = 64

// Queue is an in-process extraction worker pool. Upload handlers enqueue
// and return immediately; workers extract and apply results in background.
type Queue struct {
	extractor Extractor
	applier   ResultApplier
	jobs      chan Job
	workers   int

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue builds a queue with the given worker count (minimum 1).
func NewQueue(extractor Extractor, applier ResultApplier, workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		extractor: extractor,
		applier:   applier,
		jobs:      make(chan Job, defaultBuffer),
		workers:   workers,
	}
}

// Start launches the worker goroutines. Calling Start twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	workerCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run(workerCtx)
	}
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	cancel := q.cancel
	q.mu.Unlock()

	cancel()
	q.wg.Wait()
}

// Enqueue submits a job without blocking. A saturated buffer is reported
// as ErrQueueFull so the caller can mark the document errored.
func (q *Queue) Enqueue(job Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

func (q *Queue) process(ctx context.Context, job Job) {
	start := time.Now()
	text, err := q.extractor.Extract(ctx, job)
	durationMS := time.Since(start).Milliseconds()
	metrics.ObserveExtractionDurationMs(float64(durationMS))

	if err != nil {
		metrics.IncExtractionFailed()
		telemetry.Error("extraction.failed", map[string]any{
			"documentId":  job.DocumentID,
			"duration_ms": durationMS,
			"error":       err.Error(),
		})
	} else {
		metrics.IncExtractionCompleted()
		telemetry.Info("extraction.completed", map[string]any{
			"documentId":  job.DocumentID,
			"duration_ms": durationMS,
			"chars":       len(text),
		})
	}

	// Results still get recorded when a shutdown lands mid-extraction.
	applyCtx := context.WithoutCancel(ctx)
	if applyErr := q.applier.ApplyExtractionResult(applyCtx, job.DocumentID, text, err); applyErr != nil {
		telemetry.Error("extraction.apply_failed", map[string]any{
			"documentId": job.DocumentID,
			"error":      applyErr.Error(),
		})
	}
}
