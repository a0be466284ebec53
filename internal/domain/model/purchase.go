package model

import (
	"time"
)

// PurchaseReceipt records a completed purchase. Receipts are written after the
// stock decrement and never feed back into product quantities.
type PurchaseReceipt struct {
	ID                string    `json:"id"`
	ProductID         string    `json:"productId"`
	ProductName       string    `json:"productName"`
	BuyerUsername     string    `json:"buyerUsername"`
	SellerUsername    string    `json:"sellerUsername"`
	Quantity          int       `json:"quantity"`
	UnitPrice         float64   `json:"unitPrice"`
	Total             float64   `json:"total"`
	RemainingQuantity int       `json:"remainingQuantity"`
	PurchasedAt       time.Time `json:"purchasedAt"`
}
