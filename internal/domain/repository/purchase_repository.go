package repository

import (
	"context"
	"database/sql"
	"fmt"

	"sweet_shop/internal/domain/model"
)

type PurchaseRepository interface {
	// Create is idempotent on receipt ID so a redelivered receipt is stored once.
	Create(ctx context.Context, receipt *model.PurchaseReceipt) error
	ListByBuyer(ctx context.Context, buyerUsername string) ([]model.PurchaseReceipt, error)
}

type pgPurchaseRepository struct {
	db *sql.DB
}

func NewPgPurchaseRepository(db *sql.DB) PurchaseRepository {
	return &pgPurchaseRepository{db: db}
}

func (r *pgPurchaseRepository) Create(ctx context.Context, rc *model.PurchaseReceipt) error {
	query := `INSERT INTO purchases (id, product_id, product_name, buyer_username, seller_username,
	                                 quantity, unit_price, total, remaining_quantity, purchased_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          ON CONFLICT (id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, rc.ID, rc.ProductID, rc.ProductName, rc.BuyerUsername, rc.SellerUsername,
		rc.Quantity, rc.UnitPrice, rc.Total, rc.RemainingQuantity, rc.PurchasedAt)
	if err != nil {
		return fmt.Errorf("pgPurchaseRepository.Create: %w", err)
	}
	return nil
}

func (r *pgPurchaseRepository) ListByBuyer(ctx context.Context, buyerUsername string) ([]model.PurchaseReceipt, error) {
	query := `SELECT id, product_id, product_name, buyer_username, seller_username,
	                 quantity, unit_price, total, remaining_quantity, purchased_at
	          FROM purchases WHERE buyer_username = $1
	          ORDER BY purchased_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, buyerUsername)
	if err != nil {
		return nil, fmt.Errorf("pgPurchaseRepository.ListByBuyer query: %w", err)
	}
	defer rows.Close()

	receipts := []model.PurchaseReceipt{}
	for rows.Next() {
		var rc model.PurchaseReceipt
		if err := rows.Scan(&rc.ID, &rc.ProductID, &rc.ProductName, &rc.BuyerUsername, &rc.SellerUsername,
			&rc.Quantity, &rc.UnitPrice, &rc.Total, &rc.RemainingQuantity, &rc.PurchasedAt); err != nil {
			return nil, fmt.Errorf("pgPurchaseRepository.ListByBuyer scan: %w", err)
		}
		receipts = append(receipts, rc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgPurchaseRepository.ListByBuyer rows.Err: %w", err)
	}
	return receipts, nil
}
