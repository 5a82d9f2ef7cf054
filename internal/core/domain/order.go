package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus mirrors the payment outcome on the order record.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
	OrderStatusFailed  OrderStatus = "FAILED"
)

// Order is the minimal order record this core needs: its status is updated
// in the same atomic unit as the payment outcome. Catalog and fulfilment
// concerns live elsewhere.
type Order struct {
	ID         uuid.UUID   `json:"id"`
	MerchantID uuid.UUID   `json:"merchant_id"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
