// Package orders owns order persistence: creation before payment, lookup
// for the reconciliation polling path, and the paid/failed transitions.
package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"checkout-svc/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("order not found")

type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewService(db *sql.DB, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

func (s *Service) Create(ctx context.Context, sessionKey string, req models.CreateOrderRequest) (*models.Order, error) {
	items, err := json.Marshal(req.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}

	var order models.Order
	err = s.db.QueryRowContext(
		ctx,
		"INSERT INTO orders (id, session_key, status, total_amount, payment_method, items) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, session_key, status, total_amount, payment_method, created_at, updated_at",
		uuid.NewString(),
		sessionKey,
		models.OrderStatusPending,
		req.TotalAmount,
		req.PaymentMethod,
		items,
	).Scan(&order.ID, &order.SessionKey, &order.Status, &order.TotalAmount, &order.PaymentMethod, &order.CreatedAt, &order.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("Order created", zap.String("order_id", order.ID))
	return &order, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	var refID sql.NullString
	err := s.db.QueryRowContext(
		ctx,
		"SELECT id, session_key, status, total_amount, payment_method, payment_ref_id, created_at, updated_at FROM orders WHERE id = $1",
		id,
	).Scan(&order.ID, &order.SessionKey, &order.Status, &order.TotalAmount, &order.PaymentMethod, &refID, &order.CreatedAt, &order.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	order.PaymentRefID = refID.String
	return &order, nil
}

func (s *Service) List(ctx context.Context, sessionKey string) ([]models.Order, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT id, session_key, status, total_amount, payment_method, payment_ref_id, created_at, updated_at FROM orders WHERE session_key = $1 ORDER BY created_at DESC",
		sessionKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		var refID sql.NullString
		if err := rows.Scan(&order.ID, &order.SessionKey, &order.Status, &order.TotalAmount, &order.PaymentMethod, &refID, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.PaymentRefID = refID.String
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *Service) MarkPaid(ctx context.Context, id, refID string) error {
	result, err := s.db.ExecContext(
		ctx,
		"UPDATE orders SET status = $1, payment_ref_id = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3",
		models.OrderStatusPaid, refID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Info("Order marked paid", zap.String("order_id", id), zap.String("ref_id", refID))
	return nil
}
