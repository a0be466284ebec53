package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"sweet_shop/internal/app/service"
	"sweet_shop/internal/platform/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type chanSource struct {
	ch       chan []byte
	mu       sync.Mutex
	errs     []error
	requeued [][]byte
}

func (s *chanSource) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		s.mu.Unlock()
		return nil, err
	}
	if len(s.requeued) > 0 {
		p := s.requeued[0]
		s.requeued = s.requeued[1:]
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	select {
	case p := <-s.ch:
		return p, nil
	case <-time.After(timeout):
		return nil, queue.ErrEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *chanSource) Requeue(_ context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requeued = append([][]byte{payload}, s.requeued...)
	return nil
}

type recordingProcessor struct {
	mu   sync.Mutex
	seen []string
	// failures maps a payload to the errors returned on its first deliveries.
	failures map[string][]error
	done     chan struct{}
	want     int
}

func (p *recordingProcessor) Process(_ context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := string(payload)
	p.seen = append(p.seen, key)
	if len(p.seen) == p.want {
		close(p.done)
	}
	if errs := p.failures[key]; len(errs) > 0 {
		p.failures[key] = errs[1:]
		return errs[0]
	}
	return nil
}

func runUntil(t *testing.T, w *ReceiptWorker, done <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(stopped)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not process all receipts")
	}
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestReceiptWorker_ProcessesInOrderAndDropsMalformed(t *testing.T) {
	src := &chanSource{
		ch:   make(chan []byte, 3),
		errs: []error{errors.New("redis: connection refused")},
	}
	proc := &recordingProcessor{
		failures: map[string][]error{"b": {fmt.Errorf("%w: not json", service.ErrMalformedReceipt)}},
		done:     make(chan struct{}),
		want:     3,
	}

	w := NewReceiptWorker(src, proc, zaptest.NewLogger(t))
	w.popTimeout = 10 * time.Millisecond
	w.retryDelay = time.Millisecond

	src.ch <- []byte("a")
	src.ch <- []byte("b")
	src.ch <- []byte("c")
	runUntil(t, w, proc.done)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, proc.seen)
	assert.Empty(t, src.requeued)
}

func TestReceiptWorker_RequeuesStoreFailures(t *testing.T) {
	src := &chanSource{ch: make(chan []byte, 2)}
	proc := &recordingProcessor{
		failures: map[string][]error{"a": {errors.New("db down"), errors.New("db down")}},
		done:     make(chan struct{}),
		want:     4,
	}

	w := NewReceiptWorker(src, proc, zaptest.NewLogger(t))
	w.popTimeout = 10 * time.Millisecond
	w.retryDelay = time.Millisecond

	src.ch <- []byte("a")
	src.ch <- []byte("b")
	runUntil(t, w, proc.done)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Equal(t, []string{"a", "a", "a", "b"}, proc.seen)
}

type blockingProcessor struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (p *blockingProcessor) Process(ctx context.Context, _ []byte) error {
	close(p.started)
	<-p.release
	p.ctxErr <- ctx.Err()
	return nil
}

func TestReceiptWorker_FinishesInFlightReceiptOnShutdown(t *testing.T) {
	src := &chanSource{ch: make(chan []byte, 1)}
	proc := &blockingProcessor{
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	w := NewReceiptWorker(src, proc, zaptest.NewLogger(t))
	w.popTimeout = 10 * time.Millisecond

	src.ch <- []byte("a")
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(stopped)
	}()

	<-proc.started
	cancel()
	close(proc.release)

	select {
	case err := <-proc.ctxErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("receipt was not processed")
	}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestReceiptWorker_StopsWhenIdle(t *testing.T) {
	src := &chanSource{ch: make(chan []byte)}
	w := NewReceiptWorker(src, &recordingProcessor{done: make(chan struct{})}, zaptest.NewLogger(t))
	w.popTimeout = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	finished := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("worker kept running after context deadline")
	}
}
