package models

import "time"

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

type Order struct {
	ID            string      `json:"id"`
	SessionKey    string      `json:"session_key"`
	Status        OrderStatus `json:"status"`
	TotalAmount   string      `json:"total_amount"`
	PaymentMethod string      `json:"payment_method"`
	PaymentRefID  string      `json:"payment_ref_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type OrderItem struct {
	BookID   string `json:"book_id"`
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

type CreateOrderRequest struct {
	Items         []OrderItem `json:"items" binding:"required"`
	TotalAmount   string      `json:"total_amount" binding:"required"`
	PaymentMethod string      `json:"payment_method" binding:"required"`
}
