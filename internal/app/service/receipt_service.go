package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sweet_shop/internal/domain/model"
	"sweet_shop/internal/domain/repository"

	"go.uber.org/zap"
)

// ErrMalformedReceipt marks a queued payload that can never be stored.
var ErrMalformedReceipt = errors.New("malformed receipt")

type ReceiptQueue interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// ReceiptService records purchase receipts. With a queue they are pushed for the
// worker to persist; without one they are written straight to the repository.
type ReceiptService struct {
	queue ReceiptQueue
	repo  repository.PurchaseRepository
	log   *zap.Logger
}

func NewReceiptService(queue ReceiptQueue, repo repository.PurchaseRepository, log *zap.Logger) *ReceiptService {
	return &ReceiptService{queue: queue, repo: repo, log: log}
}

func (s *ReceiptService) Publish(ctx context.Context, receipt model.PurchaseReceipt) error {
	if s.queue == nil {
		return s.store(ctx, &receipt)
	}
	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt %s: %w", receipt.ID, err)
	}
	if err := s.queue.Push(ctx, payload); err != nil {
		return fmt.Errorf("failed to enqueue receipt %s: %w", receipt.ID, err)
	}
	return nil
}

// Process persists one queued receipt payload. Redelivery of the same receipt is harmless.
func (s *ReceiptService) Process(ctx context.Context, payload []byte) error {
	var receipt model.PurchaseReceipt
	if err := json.Unmarshal(payload, &receipt); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReceipt, err)
	}
	if receipt.ID == "" || receipt.ProductID == "" {
		return fmt.Errorf("%w: missing id or product id", ErrMalformedReceipt)
	}
	return s.store(ctx, &receipt)
}

func (s *ReceiptService) ListForBuyer(ctx context.Context, buyerUsername string) ([]model.PurchaseReceipt, error) {
	receipts, err := s.repo.ListByBuyer(ctx, buyerUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases of %s: %w", buyerUsername, err)
	}
	return receipts, nil
}

func (s *ReceiptService) store(ctx context.Context, receipt *model.PurchaseReceipt) error {
	if err := s.repo.Create(ctx, receipt); err != nil {
		return fmt.Errorf("failed to store receipt %s: %w", receipt.ID, err)
	}
	s.log.Debug("purchase receipt stored",
		zap.String("receipt_id", receipt.ID),
		zap.String("product_id", receipt.ProductID),
		zap.String("buyer", receipt.BuyerUsername))
	return nil
}
