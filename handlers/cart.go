package handlers

import (
	"net/http"

	"checkout-svc/cart"
	"checkout-svc/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts  cart.Store
	logger *zap.Logger
}

func NewCartHandler(carts cart.Store, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:  carts,
		logger: logger,
	}
}

func (h *CartHandler) GetCart(c *gin.Context) {
	sessionKey := c.GetHeader("X-Session-ID")
	if sessionKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Session-ID header is required"})
		return
	}

	items, err := h.carts.Items(c.Request.Context(), sessionKey)
	if err != nil {
		h.logger.Error("Failed to read cart",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.String("session_key", sessionKey),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}
