package extraction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingApplier struct {
	mu      sync.Mutex
	applied []appliedResult
	done    chan struct{}
}

type appliedResult struct {
	documentID string
	text       string
	err        error
}

func newRecordingApplier(expected int) *recordingApplier {
	return &recordingApplier{done: make(chan struct{}, expected)}
}

func (a *recordingApplier) ApplyExtractionResult(ctx context.Context, documentID string, text string, extractErr error) error {
	a.mu.Lock()
	a.applied = append(a.applied, appliedResult{documentID: documentID, text: text, err: extractErr})
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *recordingApplier) wait(t *testing.T) appliedResult {
	t.Helper()
	select {
	case <-a.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for extraction result")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applied[len(a.applied)-1]
}

func TestQueueAppliesExtractedText(t *testing.T) {
	applier := newRecordingApplier(1)
	q := NewQueue(ExtractorFunc(func(ctx context.Context, job Job) (string, error) {
		return "extracted body", nil
	}), applier, 2)
	q.Start(context.Background())
	defer q.Stop()

	if err := q.Enqueue(Job{DocumentID: "doc-1", FilePath: "key-1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got := applier.wait(t)
	if got.documentID != "doc-1" || got.text != "extracted body" || got.err != nil {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestQueueAppliesExtractionError(t *testing.T) {
	wantErr := errors.New("corrupt pdf")
	applier := newRecordingApplier(1)
	q := NewQueue(ExtractorFunc(func(ctx context.Context, job Job) (string, error) {
		return "", wantErr
	}), applier, 1)
	q.Start(context.Background())
	defer q.Stop()

	if err := q.Enqueue(Job{DocumentID: "doc-2"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got := applier.wait(t)
	if !errors.Is(got.err, wantErr) {
		t.Fatalf("expected extract error, got %v", got.err)
	}
}

func TestEnqueueFullBuffer(t *testing.T) {
	applier := newRecordingApplier(0)
	q := NewQueue(ExtractorFunc(func(ctx context.Context, job Job) (string, error) {
		return "", nil
	}), applier, 1)
	// Not started: jobs accumulate until the buffer fills.

	var err error
	for i := 0; i < defaultBuffer+1; i++ {
		err = q.Enqueue(Job{DocumentID: "doc"})
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestStopWaitsForInFlightJob(t *testing.T) {
	release := make(chan struct{})
	applier := newRecordingApplier(1)
	q := NewQueue(ExtractorFunc(func(ctx context.Context, job Job) (string, error) {
		<-release
		return "late", nil
	}), applier, 1)
	q.Start(context.Background())

	if err := q.Enqueue(Job{DocumentID: "doc-3"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before in-flight job finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after job finished")
	}

	got := applier.wait(t)
	if got.text != "late" {
		t.Fatalf("unexpected result: %+v", got)
	}
}
