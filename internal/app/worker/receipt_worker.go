package worker

import (
	"context"
	"errors"
	"time"

	"sweet_shop/internal/app/service"
	"sweet_shop/internal/platform/queue"

	"go.uber.org/zap"
)

const (
	defaultPopTimeout     = 5 * time.Second
	defaultRetryDelay     = 5 * time.Second
	defaultProcessTimeout = 10 * time.Second
)

type ReceiptSource interface {
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
	// Requeue returns a popped payload so it is the next one delivered.
	Requeue(ctx context.Context, payload []byte) error
}

type ReceiptProcessor interface {
	Process(ctx context.Context, payload []byte) error
}

// ReceiptWorker drains the purchase receipt queue one payload at a time.
type ReceiptWorker struct {
	source         ReceiptSource
	processor      ReceiptProcessor
	log            *zap.Logger
	popTimeout     time.Duration
	retryDelay     time.Duration
	processTimeout time.Duration
}

func NewReceiptWorker(source ReceiptSource, processor ReceiptProcessor, log *zap.Logger) *ReceiptWorker {
	return &ReceiptWorker{
		source:         source,
		processor:      processor,
		log:            log,
		popTimeout:     defaultPopTimeout,
		retryDelay:     defaultRetryDelay,
		processTimeout: defaultProcessTimeout,
	}
}

// Start blocks until ctx is cancelled. A payload already popped is still
// stored or requeued after cancellation.
func (w *ReceiptWorker) Start(ctx context.Context) {
	w.log.Info("receipt worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("receipt worker stopping")
			return
		default:
		}

		payload, err := w.source.Pop(ctx, w.popTimeout)
		if err != nil {
			switch {
			case errors.Is(err, queue.ErrEmpty):
				continue
			case ctx.Err() != nil:
				continue
			}
			w.log.Error("failed to pop receipt", zap.Error(err))
			w.sleep(ctx, w.retryDelay)
			continue
		}

		if !w.handle(ctx, payload) {
			w.sleep(ctx, w.retryDelay)
		}
	}
}

// handle reports false when the payload went back on the queue.
func (w *ReceiptWorker) handle(ctx context.Context, payload []byte) bool {
	procCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.processTimeout)
	defer cancel()

	err := w.processor.Process(procCtx, payload)
	switch {
	case err == nil:
		return true
	case errors.Is(err, service.ErrMalformedReceipt):
		w.log.Error("dropping malformed receipt", zap.Error(err), zap.ByteString("payload", payload))
		return true
	}

	w.log.Warn("failed to store receipt, requeueing", zap.Error(err))
	if err := w.source.Requeue(procCtx, payload); err != nil {
		w.log.Error("failed to requeue receipt; receipt lost",
			zap.Error(err), zap.ByteString("payload", payload))
	}
	return false
}

func (w *ReceiptWorker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
