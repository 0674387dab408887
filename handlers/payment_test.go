package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkout-svc/esewa"
	"checkout-svc/intent"
	"checkout-svc/models"
	"checkout-svc/orders"
	"checkout-svc/reconcile"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Fake gateway for testing.
type fakeGateway struct {
	initiateFunc func(ctx context.Context, order *models.Order) (*models.GatewayForm, error)
	statusFunc   func(ctx context.Context, orderID, totalAmount string) (bool, error)
}

func (g *fakeGateway) Initiate(ctx context.Context, order *models.Order) (*models.GatewayForm, error) {
	if g.initiateFunc != nil {
		return g.initiateFunc(ctx, order)
	}
	return &models.GatewayForm{
		PaymentURL: "https://gateway.example/form",
		Fields:     map[string]string{"transaction_uuid": order.ID},
	}, nil
}

func (g *fakeGateway) CheckStatus(ctx context.Context, orderID, totalAmount string) (bool, error) {
	if g.statusFunc != nil {
		return g.statusFunc(ctx, orderID, totalAmount)
	}
	return false, nil
}

// Fake reconciler for testing.
type fakeReconciler struct {
	lastReq reconcile.Request
	outcome *models.Outcome
}

func (r *fakeReconciler) Reconcile(ctx context.Context, req reconcile.Request) *models.Outcome {
	r.lastReq = req
	return r.outcome
}

func setupPaymentTest(t *testing.T, gw Gateway, rec Reconciler) (*PaymentHandler, sqlmock.Sqlmock, *intent.MemoryStore, *gin.Engine, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	orderSvc := orders.NewService(db, logger)
	intents := intent.NewMemoryStore()
	handler := NewPaymentHandler(gw, orderSvc, intents, rec, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/payments/initiate", handler.InitiatePayment)
	router.GET("/payments/callback", handler.PaymentCallback)
	router.GET("/payments/status/:orderID", handler.PaymentStatus)

	return handler, mock, intents, router, db
}

func pendingOrderRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "session_key", "status", "total_amount", "payment_method", "payment_ref_id", "created_at", "updated_at"}).
		AddRow("ORD1", "sess", models.OrderStatusPending, "1000", "esewa", nil, time.Now(), time.Now())
}

func TestPaymentHandler_Initiate_Success(t *testing.T) {
	_, mock, intents, router, db := setupPaymentTest(t, &fakeGateway{}, &fakeReconciler{})
	defer db.Close()

	mock.ExpectQuery("SELECT id, session_key, status, total_amount, payment_method, payment_ref_id, created_at, updated_at FROM orders WHERE id = \\$1").
		WithArgs("ORD1").
		WillReturnRows(pendingOrderRows())

	body, _ := json.Marshal(map[string]string{"order_id": "ORD1"})
	req := httptest.NewRequest(http.MethodPost, "/payments/initiate", bytes.NewBuffer(body))
	req.Header.Set("X-Session-ID", "sess")
	req.Header.Set("Authorization", "Bearer live-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var form models.GatewayForm
	if err := json.Unmarshal(w.Body.Bytes(), &form); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if form.Fields["transaction_uuid"] != "ORD1" {
		t.Errorf("Unexpected form fields: %+v", form.Fields)
	}

	// The intent slot is written only after initiation succeeds, with the
	// bearer token captured as the auth snapshot.
	in, err := intents.Load(context.Background(), "sess")
	if err != nil || in == nil {
		t.Fatalf("Expected saved intent, got %+v, %v", in, err)
	}
	if in.OrderID != "ORD1" || in.AuthSnapshot != "live-token" {
		t.Errorf("Unexpected intent: %+v", in)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestPaymentHandler_Initiate_GatewayRejects(t *testing.T) {
	gw := &fakeGateway{
		initiateFunc: func(ctx context.Context, order *models.Order) (*models.GatewayForm, error) {
			return nil, &esewa.InitiationError{Reason: "order ORD1 is paid, not pending"}
		},
	}
	_, mock, intents, router, db := setupPaymentTest(t, gw, &fakeReconciler{})
	defer db.Close()

	mock.ExpectQuery("SELECT id, session_key, status, total_amount, payment_method, payment_ref_id, created_at, updated_at FROM orders WHERE id = \\$1").
		WithArgs("ORD1").
		WillReturnRows(pendingOrderRows())

	body, _ := json.Marshal(map[string]string{"order_id": "ORD1"})
	req := httptest.NewRequest(http.MethodPost, "/payments/initiate", bytes.NewBuffer(body))
	req.Header.Set("X-Session-ID", "sess")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}

	// No intent may be persisted when initiation fails.
	if in, _ := intents.Load(context.Background(), "sess"); in != nil {
		t.Errorf("Expected no intent saved, got %+v", in)
	}
}

func TestPaymentHandler_Initiate_MissingSession(t *testing.T) {
	_, _, _, router, db := setupPaymentTest(t, &fakeGateway{}, &fakeReconciler{})
	defer db.Close()

	body, _ := json.Marshal(map[string]string{"order_id": "ORD1"})
	req := httptest.NewRequest(http.MethodPost, "/payments/initiate", bytes.NewBuffer(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestPaymentHandler_Callback(t *testing.T) {
	rec := &fakeReconciler{
		outcome: &models.Outcome{
			Kind:     models.OutcomeVerified,
			Redirect: "/orders",
			Details:  &models.PaymentDetails{TransactionUUID: "ORD1", TotalAmount: "1000"},
		},
	}
	_, _, _, router, db := setupPaymentTest(t, &fakeGateway{}, rec)
	defer db.Close()

	req := httptest.NewRequest(http.MethodGet, "/payments/callback?transaction_uuid=ORD1&signature=c2ln", nil)
	req.Header.Set("X-Session-ID", "sess")
	req.Header.Set("Authorization", "Bearer live-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	if rec.lastReq.SessionKey != "sess" {
		t.Errorf("Expected session key sess, got %q", rec.lastReq.SessionKey)
	}
	if rec.lastReq.RawQuery != "transaction_uuid=ORD1&signature=c2ln" {
		t.Errorf("Expected raw query passed through, got %q", rec.lastReq.RawQuery)
	}
	if rec.lastReq.CurrentAuth != "live-token" {
		t.Errorf("Expected bearer token extracted, got %q", rec.lastReq.CurrentAuth)
	}

	var outcome models.Outcome
	if err := json.Unmarshal(w.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("Failed to decode outcome: %v", err)
	}
	if outcome.Kind != models.OutcomeVerified || outcome.Redirect != "/orders" {
		t.Errorf("Unexpected outcome: %+v", outcome)
	}
}

func TestPaymentHandler_Status(t *testing.T) {
	gw := &fakeGateway{
		statusFunc: func(ctx context.Context, orderID, totalAmount string) (bool, error) {
			return true, nil
		},
	}
	_, mock, _, router, db := setupPaymentTest(t, gw, &fakeReconciler{})
	defer db.Close()

	mock.ExpectQuery("SELECT id, session_key, status, total_amount, payment_method, payment_ref_id, created_at, updated_at FROM orders WHERE id = \\$1").
		WithArgs("ORD1").
		WillReturnRows(pendingOrderRows())

	req := httptest.NewRequest(http.MethodGet, "/payments/status/ORD1", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp struct {
		OrderID   string `json:"order_id"`
		Confirmed bool   `json:"confirmed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Confirmed || resp.OrderID != "ORD1" {
		t.Errorf("Unexpected response: %+v", resp)
	}
}
