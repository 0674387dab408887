// Package intent persists the single-slot payment intent that bridges the
// redirect round-trip to the gateway. One slot per session key; the slot is
// replaced on write, read non-destructively, and cleared exactly once when
// reconciliation reaches a terminal outcome.
package intent

import (
	"context"
	"time"

	"checkout-svc/models"
)

type Store interface {
	// Save overwrites the slot for key with a fresh intent. Idempotent.
	Save(ctx context.Context, key, orderID, authSnapshot string) error

	// Load returns the stored intent, or nil when the slot is empty.
	Load(ctx context.Context, key string) (*models.PaymentIntent, error)

	// Clear empties the slot. Clearing an empty slot is not an error.
	Clear(ctx context.Context, key string) error

	// RestoreAuthIfDropped returns the credential to treat as active: the
	// stored snapshot when currentAuth is empty and a snapshot exists,
	// currentAuth otherwise. The snapshot is discarded from the slot in
	// either case; the redirect round-trip only gets one repair attempt.
	RestoreAuthIfDropped(ctx context.Context, key, currentAuth string) (active string, restored bool, err error)
}

func newIntent(orderID, authSnapshot string) models.PaymentIntent {
	return models.PaymentIntent{
		OrderID:      orderID,
		InitiatedAt:  time.Now().UTC(),
		AuthSnapshot: authSnapshot,
	}
}
