// Package reconcile decides what actually happened to a payment once the
// shopper lands back from the gateway: verify the callback when it is
// signed, fall back to polling the stored intent when the callback is
// missing, and otherwise resolve optimistically. Every visit ends in
// exactly one terminal outcome and fires its side effects exactly once.
package reconcile

import (
	"context"
	"sync"
	"time"

	"checkout-svc/callback"
	"checkout-svc/intent"
	"checkout-svc/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Gateway is the slice of the eSewa client the reconciler needs.
type Gateway interface {
	Verify(ctx context.Context, payload *models.CallbackPayload) (confirmed bool, message string, err error)
	CheckStatus(ctx context.Context, orderID, totalAmount string) (bool, error)
}

// OrderLookup supplies the order amount for the polling path.
type OrderLookup interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
}

// Sink receives the side effects of a terminal outcome. Implementations
// must be idempotent; sink failures are logged, never allowed to block the
// terminal outcome.
type Sink interface {
	ClearCart(ctx context.Context, sessionKey string) error
	PaymentReconciled(ctx context.Context, event models.PaymentEvent) error
}

type AuthValidator interface {
	Valid(token string) bool
}

// Request carries the reconcile inputs explicitly so the state machine is
// testable without any HTTP plumbing.
type Request struct {
	SessionKey  string
	RawQuery    string
	CurrentAuth string
}

// staleIntentAge is the recommended staleness bound: older intents are
// still polled, but loudly.
const staleIntentAge = 24 * time.Hour

// visitRetention is how long a completed visit's outcome is replayed to
// duplicate calls with the same session and query.
const visitRetention = 10 * time.Minute

type visit struct {
	done        chan struct{}
	outcome     *models.Outcome
	completedAt time.Time
}

type Reconciler struct {
	intents    intent.Store
	gateway    Gateway
	orders     OrderLookup
	sink       Sink
	authv      AuthValidator
	logger     *zap.Logger
	timeout    time.Duration
	optimistic bool

	mu     sync.Mutex
	visits map[string]*visit
}

func NewReconciler(
	intents intent.Store,
	gateway Gateway,
	orders OrderLookup,
	sink Sink,
	authv AuthValidator,
	logger *zap.Logger,
	timeout time.Duration,
	optimisticFallback bool,
) *Reconciler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Reconciler{
		intents:    intents,
		gateway:    gateway,
		orders:     orders,
		sink:       sink,
		authv:      authv,
		logger:     logger,
		timeout:    timeout,
		optimistic: optimisticFallback,
		visits:     make(map[string]*visit),
	}
}

// Reconcile resolves one return-from-gateway visit to a terminal outcome.
// Single-flight per (session, query): duplicate invocations share one
// execution and one result, so the outbound verify/poll call happens at
// most once per visit. It never fails; transport trouble resolves to the
// uncertain outcome.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) *models.Outcome {
	key := req.SessionKey + "|" + req.RawQuery

	r.mu.Lock()
	r.evictStale()
	if v, ok := r.visits[key]; ok {
		r.mu.Unlock()
		<-v.done
		return v.outcome
	}
	v := &visit{done: make(chan struct{})}
	r.visits[key] = v
	r.mu.Unlock()

	v.outcome = r.run(ctx, req)

	r.mu.Lock()
	v.completedAt = time.Now()
	r.mu.Unlock()
	close(v.done)

	return v.outcome
}

// evictStale drops completed visits past retention. Caller holds r.mu.
func (r *Reconciler) evictStale() {
	for key, v := range r.visits {
		if !v.completedAt.IsZero() && time.Since(v.completedAt) > visitRetention {
			delete(r.visits, key)
		}
	}
}

func (r *Reconciler) run(ctx context.Context, req Request) *models.Outcome {
	ctx, span := otel.Tracer("checkout-service").Start(ctx, "Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("session_key", req.SessionKey))

	// Detach from the caller: an abandoned request must not strand the
	// visit short of a terminal outcome. The per-call timeout below is
	// what bounds it instead.
	ctx = context.WithoutCancel(ctx)

	// Store reads get the same bound as the network calls; a wedged
	// backend must not stall the visit short of a terminal outcome.
	sctx, scancel := context.WithTimeout(ctx, r.timeout)
	active, restored := r.restoreAuth(sctx, req)

	in, err := r.intents.Load(sctx, req.SessionKey)
	scancel()
	if err != nil {
		r.logger.Error("Failed to load payment intent", zap.String("session_key", req.SessionKey), zap.Error(err))
		in = nil
	}

	payload := callback.Parse(req.RawQuery)

	var outcome *models.Outcome
	switch {
	case payload.Verifiable():
		outcome = r.verifyPayload(ctx, payload)
	case payload == nil && in != nil:
		outcome = r.pollIntent(ctx, in)
	default:
		outcome = r.fallback(req, payload, in)
	}

	span.SetAttributes(attribute.String("outcome", string(outcome.Kind)))

	if restored {
		outcome.RestoredAuth = active
	}
	r.finish(ctx, req, in, payload, outcome)
	return outcome
}

func (r *Reconciler) restoreAuth(ctx context.Context, req Request) (string, bool) {
	active, restored, err := r.intents.RestoreAuthIfDropped(ctx, req.SessionKey, req.CurrentAuth)
	if err != nil {
		r.logger.Error("Failed to restore auth snapshot", zap.String("session_key", req.SessionKey), zap.Error(err))
		return req.CurrentAuth, false
	}
	if restored && r.authv != nil && !r.authv.Valid(active) {
		r.logger.Warn("Discarding invalid auth snapshot", zap.String("session_key", req.SessionKey))
		return req.CurrentAuth, false
	}
	return active, restored
}

func (r *Reconciler) verifyPayload(ctx context.Context, payload *models.CallbackPayload) *models.Outcome {
	vctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	confirmed, message, err := r.gateway.Verify(vctx, payload)
	if err != nil {
		// Unknown, not rejected. The shopper may well have paid; never
		// leave them without a terminal outcome.
		r.logger.Error("Payment verification failed",
			zap.String("transaction_uuid", payload.TransactionUUID),
			zap.String("total_amount", payload.TotalAmount),
			zap.Error(err),
		)
		return &models.Outcome{
			Kind:    models.OutcomeUncertain,
			Message: "We could not confirm your payment yet. It will be reconciled shortly.",
		}
	}

	if !confirmed {
		r.logger.Warn("Payment not confirmed by gateway",
			zap.String("transaction_uuid", payload.TransactionUUID),
			zap.String("reason", message),
		)
		return &models.Outcome{
			Kind:    models.OutcomeUncertain,
			Message: "Your payment could not be confirmed. Please check your order status.",
		}
	}

	return &models.Outcome{
		Kind: models.OutcomeVerified,
		Details: &models.PaymentDetails{
			TransactionUUID: payload.TransactionUUID,
			RefID:           payload.RefID,
			TotalAmount:     payload.TotalAmount,
		},
	}
}

func (r *Reconciler) pollIntent(ctx context.Context, in *models.PaymentIntent) *models.Outcome {
	if age := time.Since(in.InitiatedAt); age > staleIntentAge {
		r.logger.Warn("Polling stale payment intent",
			zap.String("order_id", in.OrderID),
			zap.Duration("age", age),
		)
	}

	totalAmount := ""
	if r.orders != nil {
		order, err := r.orders.GetByID(ctx, in.OrderID)
		if err != nil {
			r.logger.Warn("Failed to look up order for status poll", zap.String("order_id", in.OrderID), zap.Error(err))
		} else {
			totalAmount = order.TotalAmount
		}
	}

	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	confirmed, err := r.gateway.CheckStatus(pctx, in.OrderID, totalAmount)
	if err != nil {
		r.logger.Error("Payment status poll failed", zap.String("order_id", in.OrderID), zap.Error(err))
		confirmed = false
	}

	if !confirmed {
		return &models.Outcome{
			Kind:    models.OutcomeUncertain,
			Message: "Your payment could not be confirmed. Please check your order status.",
		}
	}

	return &models.Outcome{
		Kind: models.OutcomeVerified,
		Details: &models.PaymentDetails{
			TransactionUUID: in.OrderID,
			TotalAmount:     totalAmount,
		},
	}
}

// fallback handles a payload that is present but not verifiable, or no
// payload with no stored intent. The gateway only redirects back on a
// plausible success path, so the optimistic policy resolves these as a
// generic success and logs the discrepancy for offline reconciliation
// rather than blocking a customer who did pay.
func (r *Reconciler) fallback(req Request, payload *models.CallbackPayload, in *models.PaymentIntent) *models.Outcome {
	if payload.Informative() {
		r.logger.Warn("Callback present but not verifiable",
			zap.String("session_key", req.SessionKey),
			zap.String("product_code", payload.ProductCode),
			zap.String("transaction_uuid", payload.TransactionUUID),
			zap.Bool("has_signature", payload.Signature != ""),
			zap.Bool("has_intent", in != nil),
		)
	}

	if !r.optimistic {
		return &models.Outcome{
			Kind:    models.OutcomeUncertain,
			Message: "Your payment could not be confirmed. Please check your order status.",
		}
	}
	return &models.Outcome{
		Kind:    models.OutcomeGenericSuccess,
		Message: "Thank you for your order!",
	}
}

// finish fires the terminal side effects: clear the cart, purge the intent
// slot, publish the reconciliation event. All idempotent and best-effort:
// a failed effect is logged and the outcome stands.
func (r *Reconciler) finish(ctx context.Context, req Request, in *models.PaymentIntent, payload *models.CallbackPayload, outcome *models.Outcome) {
	outcome.Redirect = "/orders"

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.sink.ClearCart(ctx, req.SessionKey); err != nil {
		r.logger.Error("Failed to clear cart", zap.String("session_key", req.SessionKey), zap.Error(err))
	}

	if err := r.intents.Clear(ctx, req.SessionKey); err != nil {
		r.logger.Error("Failed to clear payment intent", zap.String("session_key", req.SessionKey), zap.Error(err))
	}

	event := models.PaymentEvent{
		SessionKey: req.SessionKey,
		Outcome:    outcome.Kind,
	}
	if in != nil {
		event.OrderID = in.OrderID
	}
	if payload != nil {
		if event.OrderID == "" {
			event.OrderID = payload.TransactionUUID
		}
		event.TotalAmount = payload.TotalAmount
	}
	if outcome.Details != nil {
		event.TransactionUUID = outcome.Details.TransactionUUID
		event.RefID = outcome.Details.RefID
		event.TotalAmount = outcome.Details.TotalAmount
	}
	switch outcome.Kind {
	case models.OutcomeVerified:
		event.EventType = "payment_verified"
	case models.OutcomeUncertain:
		event.EventType = "payment_uncertain"
	default:
		event.EventType = "payment_unverified"
	}

	if err := r.sink.PaymentReconciled(ctx, event); err != nil {
		r.logger.Error("Failed to publish reconciliation event", zap.String("session_key", req.SessionKey), zap.Error(err))
	}
}
