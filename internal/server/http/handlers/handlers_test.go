package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/codeskytz/smmbot/internal/domain/errors"
	"github.com/codeskytz/smmbot/internal/domain/model"
	"github.com/codeskytz/smmbot/internal/server/http/dto"
	testhelpers "github.com/codeskytz/smmbot/internal/test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(t *testing.T, method, path string, handler gin.HandlerFunc, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.Handle(method, path, handler)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

func TestChatHandlerInbound(t *testing.T) {
	var gotFrom, gotText string
	handler := NewChatHandler(testhelpers.ChatFacadeStub{HandleFn: func(ctx context.Context, from, text string) (string, error) {
		gotFrom, gotText = from, text
		return "*👋 Welcome to CodeSkytz SMM Bot!*", nil
	}})

	body, _ := json.Marshal(dto.ChatMessageRequest{From: "255712345678", Message: "hi"})
	resp := performRequest(t, http.MethodPost, "/webhook/chat", handler.Inbound, body, jsonHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if gotFrom != "255712345678" || gotText != "hi" {
		t.Fatalf("unexpected engine arguments: %q %q", gotFrom, gotText)
	}

	var reply dto.ChatReplyResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("unexpected response body: %v", err)
	}
	if reply.Reply == "" {
		t.Fatalf("expected reply text in response")
	}
}

func TestChatHandlerInboundValidation(t *testing.T) {
	handler := NewChatHandler(testhelpers.ChatFacadeStub{})

	resp := performRequest(t, http.MethodPost, "/webhook/chat", handler.Inbound, []byte("not json"), jsonHeaders)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed body, got %d", resp.Code)
	}

	body, _ := json.Marshal(dto.ChatMessageRequest{From: "  ", Message: "hi"})
	resp = performRequest(t, http.MethodPost, "/webhook/chat", handler.Inbound, body, jsonHeaders)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing sender, got %d", resp.Code)
	}
}

func TestChatHandlerInboundEngineError(t *testing.T) {
	handler := NewChatHandler(testhelpers.ChatFacadeStub{HandleFn: func(context.Context, string, string) (string, error) {
		return "", errors.New("session store unavailable")
	}})

	body, _ := json.Marshal(dto.ChatMessageRequest{From: "255712345678", Message: "hi"})
	resp := performRequest(t, http.MethodPost, "/webhook/chat", handler.Inbound, body, jsonHeaders)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}
}

func TestPaymentWebhookReceive(t *testing.T) {
	facade := &testhelpers.PaymentFacadeStub{}
	handler := NewPaymentWebhookHandler(facade)

	body, _ := json.Marshal(dto.PaymentWebhookRequest{OrderID: "ord-1", PaymentStatus: "COMPLETED", Reference: "REF9"})
	resp := performRequest(t, http.MethodPost, "/webhook/payment", handler.Receive, body, jsonHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if len(facade.Events) != 1 {
		t.Fatalf("expected one payment event, got %d", len(facade.Events))
	}
	event := facade.Events[0]
	if event.OrderID != "ord-1" || event.PaymentStatus != "COMPLETED" || event.Reference != "REF9" {
		t.Fatalf("unexpected event %+v", event)
	}
	if !bytes.Equal(event.Payload, body) {
		t.Fatalf("expected raw payload to be forwarded")
	}
}

func TestPaymentWebhookValidation(t *testing.T) {
	handler := NewPaymentWebhookHandler(&testhelpers.PaymentFacadeStub{})

	resp := performRequest(t, http.MethodPost, "/webhook/payment", handler.Receive, []byte("{broken"), jsonHeaders)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed body, got %d", resp.Code)
	}

	body, _ := json.Marshal(dto.PaymentWebhookRequest{PaymentStatus: "COMPLETED"})
	resp = performRequest(t, http.MethodPost, "/webhook/payment", handler.Receive, body, jsonHeaders)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing order id, got %d", resp.Code)
	}
}

func TestPaymentWebhookUnknownOrder(t *testing.T) {
	handler := NewPaymentWebhookHandler(&testhelpers.PaymentFacadeStub{
		EventFn: func(context.Context, string, string, string, []byte) error {
			return domainErrors.ErrNotFound
		},
	})

	body, _ := json.Marshal(dto.PaymentWebhookRequest{OrderID: "missing", PaymentStatus: "COMPLETED"})
	resp := performRequest(t, http.MethodPost, "/webhook/payment", handler.Receive, body, jsonHeaders)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestPaymentWebhookStorageError(t *testing.T) {
	handler := NewPaymentWebhookHandler(&testhelpers.PaymentFacadeStub{
		EventFn: func(context.Context, string, string, string, []byte) error {
			return errors.New("db down")
		},
	})

	body, _ := json.Marshal(dto.PaymentWebhookRequest{OrderID: "ord-1", PaymentStatus: "COMPLETED"})
	resp := performRequest(t, http.MethodPost, "/webhook/payment", handler.Receive, body, jsonHeaders)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}
}

func TestAdminLogin(t *testing.T) {
	handler := NewAdminHandler(testhelpers.AdminFacadeStub{LoginFn: func(ctx context.Context, login, password string) (string, error) {
		if login != "admin" || password != "secret" {
			return "", domainErrors.ErrInvalidCredentials
		}
		return "issued-token", nil
	}})

	body, _ := json.Marshal(dto.LoginRequest{Login: "admin", Password: "secret"})
	resp := performRequest(t, http.MethodPost, "/admin/login", handler.Login, body, jsonHeaders)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var token dto.TokenResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &token); err != nil || token.Token != "issued-token" {
		t.Fatalf("expected issued token, got %q err %v", token.Token, err)
	}

	body, _ = json.Marshal(dto.LoginRequest{Login: "admin", Password: "wrong"})
	resp = performRequest(t, http.MethodPost, "/admin/login", handler.Login, body, jsonHeaders)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}

	resp = performRequest(t, http.MethodPost, "/admin/login", handler.Login, []byte("{"), jsonHeaders)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestAdminOrders(t *testing.T) {
	completed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	remote := "777"
	handler := NewAdminHandler(testhelpers.AdminFacadeStub{OrdersFn: func(ctx context.Context, limit int) ([]model.Order, error) {
		if limit != 10 {
			t.Fatalf("expected limit 10, got %d", limit)
		}
		return []model.Order{{
			ID:            "ord-1",
			Status:        model.OrderStatusCompleted,
			ServiceName:   "Instagram Followers",
			Quantity:      100,
			AmountDue:     500,
			RemoteOrderID: &remote,
			CompletedAt:   &completed,
		}}, nil
	}})

	router := gin.New()
	router.GET("/admin/orders", handler.Orders)
	req := httptest.NewRequest(http.MethodGet, "/admin/orders?limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var orders []dto.OrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &orders); err != nil {
		t.Fatalf("unexpected body: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "ord-1" || orders[0].RemoteOrderID == nil || *orders[0].RemoteOrderID != "777" {
		t.Fatalf("unexpected orders payload %+v", orders)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/orders?limit=abc", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad limit, got %d", w.Code)
	}
}

func TestAdminOrderByID(t *testing.T) {
	handler := NewAdminHandler(testhelpers.AdminFacadeStub{OrderFn: func(ctx context.Context, id string) (*model.Order, error) {
		if id != "ord-1" {
			return nil, domainErrors.ErrNotFound
		}
		return &model.Order{ID: id, Status: model.OrderStatusProcessing}, nil
	}})

	router := gin.New()
	router.GET("/admin/orders/:id", handler.Order)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/orders/ord-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/orders/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestAdminImportCatalog(t *testing.T) {
	handler := NewAdminHandler(testhelpers.AdminFacadeStub{ImportFn: func(context.Context) (int, error) {
		return 42, nil
	}})
	resp := performRequest(t, http.MethodPost, "/admin/catalog/import", handler.ImportCatalog, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var imported dto.ImportResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &imported); err != nil || imported.Imported != 42 {
		t.Fatalf("expected 42 imported, got %+v err %v", imported, err)
	}

	handler = NewAdminHandler(testhelpers.AdminFacadeStub{ImportFn: func(context.Context) (int, error) {
		return 0, errors.New("panel unavailable")
	}})
	resp = performRequest(t, http.MethodPost, "/admin/catalog/import", handler.ImportCatalog, nil, nil)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", resp.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	resp := performRequest(t, http.MethodGet, "/health", NewHealthHandler(testhelpers.HealthFacadeStub{}).Check, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	resp = performRequest(t, http.MethodGet, "/health", NewHealthHandler(testhelpers.HealthFacadeStub{Err: errors.New("db down")}).Check, nil, nil)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", resp.Code)
	}
}
