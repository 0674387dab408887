package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkout-svc/models"
	"checkout-svc/orders"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupOrderTest(t *testing.T) (sqlmock.Sqlmock, *gin.Engine, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewOrderHandler(orders.NewService(db, logger), logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/orders", handler.CreateOrder)
	router.GET("/orders", handler.ListOrders)
	router.GET("/orders/:id", handler.GetOrder)

	return mock, router, db
}

func TestOrderHandler_CreateOrder_Success(t *testing.T) {
	mock, router, db := setupOrderTest(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "session_key", "status", "total_amount", "payment_method", "created_at", "updated_at"}).
		AddRow("ORD1", "sess", models.OrderStatusPending, "1500", "esewa", time.Now(), time.Now())

	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), "sess", models.OrderStatusPending, "1500", "esewa", sqlmock.AnyArg()).
		WillReturnRows(rows)

	reqBody := models.CreateOrderRequest{
		Items:         []models.OrderItem{{BookID: "B1", Title: "Palpasa Cafe", Quantity: 1, Price: "1500"}},
		TotalAmount:   "1500",
		PaymentMethod: "esewa",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBuffer(body))
	req.Header.Set("X-Session-ID", "sess")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_CreateOrder_MissingSession(t *testing.T) {
	_, router, db := setupOrderTest(t)
	defer db.Close()

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestOrderHandler_GetOrder_NotFound(t *testing.T) {
	mock, router, db := setupOrderTest(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id, session_key, status, total_amount, payment_method, payment_ref_id, created_at, updated_at FROM orders WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestOrderHandler_ListOrders(t *testing.T) {
	mock, router, db := setupOrderTest(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "session_key", "status", "total_amount", "payment_method", "payment_ref_id", "created_at", "updated_at"}).
		AddRow("ORD1", "sess", models.OrderStatusPaid, "1500", "esewa", "REF9", time.Now(), time.Now())

	mock.ExpectQuery("SELECT id, session_key, status, total_amount, payment_method, payment_ref_id, created_at, updated_at FROM orders WHERE session_key = \\$1").
		WithArgs("sess").
		WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Session-ID", "sess")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var list []models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(list) != 1 || list[0].ID != "ORD1" {
		t.Errorf("Unexpected orders: %+v", list)
	}
}
