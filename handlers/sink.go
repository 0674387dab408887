package handlers

import (
	"context"

	"checkout-svc/cart"
	"checkout-svc/kafka"
	"checkout-svc/middleware"
	"checkout-svc/models"
	"checkout-svc/orders"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// EffectSink is the production side-effect sink for terminal reconciliation
// outcomes: clear the session cart, record the paid order, publish the
// event, bump the counter. Every effect is idempotent.
type EffectSink struct {
	carts    cart.Store
	orders   *orders.Service
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewEffectSink(carts cart.Store, orderSvc *orders.Service, producer sarama.SyncProducer, topic string, logger *zap.Logger) *EffectSink {
	return &EffectSink{
		carts:    carts,
		orders:   orderSvc,
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

func (s *EffectSink) ClearCart(ctx context.Context, sessionKey string) error {
	return s.carts.Clear(ctx, sessionKey)
}

func (s *EffectSink) PaymentReconciled(ctx context.Context, event models.PaymentEvent) error {
	middleware.RecordPaymentReconciled(string(event.Outcome))

	if event.Outcome == models.OutcomeVerified && event.OrderID != "" {
		if err := s.orders.MarkPaid(ctx, event.OrderID, event.RefID); err != nil {
			s.logger.Error("Failed to mark order paid", zap.String("order_id", event.OrderID), zap.Error(err))
		}
	}

	return kafka.PublishPaymentEvent(ctx, s.producer, s.topic, event, s.logger)
}
