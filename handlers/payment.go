package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"checkout-svc/esewa"
	"checkout-svc/intent"
	"checkout-svc/middleware"
	"checkout-svc/models"
	"checkout-svc/orders"
	"checkout-svc/reconcile"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Gateway is the slice of the eSewa client the payment handlers use.
type Gateway interface {
	Initiate(ctx context.Context, order *models.Order) (*models.GatewayForm, error)
	CheckStatus(ctx context.Context, orderID, totalAmount string) (bool, error)
}

// Reconciler resolves a return-from-gateway visit to a terminal outcome.
type Reconciler interface {
	Reconcile(ctx context.Context, req reconcile.Request) *models.Outcome
}

type PaymentHandler struct {
	gateway    Gateway
	orders     *orders.Service
	intents    intent.Store
	reconciler Reconciler
	logger     *zap.Logger
}

func NewPaymentHandler(
	gateway Gateway,
	orderSvc *orders.Service,
	intents intent.Store,
	reconciler Reconciler,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		gateway:    gateway,
		orders:     orderSvc,
		intents:    intents,
		reconciler: reconciler,
		logger:     logger,
	}
}

type initiateRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// InitiatePayment returns the signed gateway form for a pending order. The
// payment intent slot is written only after initiation succeeds, with the
// caller's bearer token captured as the auth snapshot for the return leg.
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "InitiatePayment")
	defer span.End()

	sessionKey := c.GetHeader("X-Session-ID")
	if sessionKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Session-ID header is required"})
		return
	}

	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("session_key", sessionKey),
		attribute.String("order.id", req.OrderID),
	)

	order, err := h.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get order for initiation",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	form, err := h.gateway.Initiate(ctx, order)
	if err != nil {
		span.RecordError(err)
		var initErr *esewa.InitiationError
		if errors.As(err, &initErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": initErr.Reason})
			return
		}
		h.logger.Error("Failed to initiate payment",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment could not be started"})
		return
	}

	if err := h.intents.Save(ctx, sessionKey, order.ID, bearerToken(c)); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to save payment intent",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	middleware.RecordPaymentInitiated()
	c.JSON(http.StatusOK, form)
}

// PaymentCallback is the return destination after the gateway redirect. It
// hands the visit to the reconciler and always answers with a terminal
// outcome, whatever the query string looked like.
func (h *PaymentHandler) PaymentCallback(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "PaymentCallback")
	defer span.End()

	sessionKey := c.GetHeader("X-Session-ID")
	if sessionKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Session-ID header is required"})
		return
	}

	outcome := h.reconciler.Reconcile(ctx, reconcile.Request{
		SessionKey:  sessionKey,
		RawQuery:    c.Request.URL.RawQuery,
		CurrentAuth: bearerToken(c),
	})

	span.SetAttributes(
		attribute.String("session_key", sessionKey),
		attribute.String("outcome", string(outcome.Kind)),
	)

	c.JSON(http.StatusOK, outcome)
}

// PaymentStatus reports the current gateway status for one order.
func (h *PaymentHandler) PaymentStatus(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "PaymentStatus")
	defer span.End()

	orderID := c.Param("orderID")
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	confirmed, err := h.gateway.CheckStatus(ctx, order.ID, order.TotalAmount)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Payment status check failed",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Gateway unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order_id": order.ID, "confirmed": confirmed})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}
