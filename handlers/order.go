package handlers

import (
	"errors"
	"net/http"

	"checkout-svc/middleware"
	"checkout-svc/models"
	"checkout-svc/orders"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orders *orders.Service
	logger *zap.Logger
}

func NewOrderHandler(orderSvc *orders.Service, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orderSvc,
		logger: logger,
	}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	sessionKey := c.GetHeader("X-Session-ID")
	if sessionKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Session-ID header is required"})
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("session_key", sessionKey),
		attribute.String("total_amount", req.TotalAmount),
	)

	order, err := h.orders.Create(ctx, sessionKey, req)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create order",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	orderID := c.Param("id")
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get order",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "ListOrders")
	defer span.End()

	sessionKey := c.GetHeader("X-Session-ID")
	if sessionKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Session-ID header is required"})
		return
	}

	list, err := h.orders.List(ctx, sessionKey)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to list orders",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, list)
}
