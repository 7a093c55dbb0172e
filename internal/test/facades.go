package test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeskytz/smmbot/internal/domain/model"
)

// RemoteStatusCall captures one ApplyRemoteStatus invocation.
type RemoteStatusCall struct {
	OrderID string
	Reply   json.RawMessage
}

// PollerFacadeStub mimics poller interactions with the application facade.
type PollerFacadeStub struct {
	Orders          [][]model.Order
	OrdersFn        func(context.Context, int) ([]model.Order, error)
	StatusFn        func(context.Context, string) (json.RawMessage, error)
	ApplyFn         func(context.Context, *model.Order, json.RawMessage)
	Applied         []RemoteStatusCall
	mu              sync.Mutex
	ordersCallCount int32
}

// Lock exposes internal mutex for external synchronization.
func (s *PollerFacadeStub) Lock() { s.mu.Lock() }

// Unlock releases previously acquired lock.
func (s *PollerFacadeStub) Unlock() { s.mu.Unlock() }

// OrdersForPolling returns batches from configured queue.
func (s *PollerFacadeStub) OrdersForPolling(ctx context.Context, limit int) ([]model.Order, error) {
	if s.OrdersFn != nil {
		return s.OrdersFn(ctx, limit)
	}
	call := atomic.AddInt32(&s.ordersCallCount, 1)
	if int(call) <= len(s.Orders) {
		return s.Orders[call-1], nil
	}
	time.Sleep(10 * time.Millisecond)
	return nil, nil
}

// RemoteStatus returns configured provider status payloads.
func (s *PollerFacadeStub) RemoteStatus(ctx context.Context, remoteID string) (json.RawMessage, error) {
	if s.StatusFn != nil {
		return s.StatusFn(ctx, remoteID)
	}
	return json.RawMessage(`{"status": "Completed"}`), nil
}

// ApplyRemoteStatus records reconciliation requests.
func (s *PollerFacadeStub) ApplyRemoteStatus(ctx context.Context, order *model.Order, reply json.RawMessage) {
	if s.ApplyFn != nil {
		s.ApplyFn(ctx, order, reply)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Applied = append(s.Applied, RemoteStatusCall{OrderID: order.ID, Reply: reply})
}

// TokenParserStub validates tokens with a canned result.
type TokenParserStub struct {
	Login string
	Err   error
}

// ParseToken returns the configured subject or error.
func (s TokenParserStub) ParseToken(string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if s.Login == "" {
		return "admin", nil
	}
	return s.Login, nil
}

// ChatFacadeStub fakes conversation handling for handler tests.
type ChatFacadeStub struct {
	HandleFn func(context.Context, string, string) (string, error)
}

// HandleMessage invokes the configured function or echoes a canned reply.
func (s ChatFacadeStub) HandleMessage(ctx context.Context, from, text string) (string, error) {
	if s.HandleFn != nil {
		return s.HandleFn(ctx, from, text)
	}
	return "ok", nil
}

// PaymentEventCall captures one PaymentEvent invocation.
type PaymentEventCall struct {
	OrderID       string
	PaymentStatus string
	Reference     string
	Payload       []byte
}

// PaymentFacadeStub fakes payment webhook handling.
type PaymentFacadeStub struct {
	EventFn func(context.Context, string, string, string, []byte) error
	Events  []PaymentEventCall
	mu      sync.Mutex
}

// PaymentEvent records the call or delegates to EventFn.
func (s *PaymentFacadeStub) PaymentEvent(ctx context.Context, orderID, paymentStatus, reference string, payload []byte) error {
	if s.EventFn != nil {
		return s.EventFn(ctx, orderID, paymentStatus, reference, payload)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, PaymentEventCall{OrderID: orderID, PaymentStatus: paymentStatus, Reference: reference, Payload: payload})
	return nil
}

// AdminFacadeStub fakes operator operations.
type AdminFacadeStub struct {
	LoginFn  func(context.Context, string, string) (string, error)
	ParseFn  func(string) (string, error)
	OrdersFn func(context.Context, int) ([]model.Order, error)
	OrderFn  func(context.Context, string) (*model.Order, error)
	ImportFn func(context.Context) (int, error)
}

// AdminLogin delegates to LoginFn or issues a canned token.
func (s AdminFacadeStub) AdminLogin(ctx context.Context, login, password string) (string, error) {
	if s.LoginFn != nil {
		return s.LoginFn(ctx, login, password)
	}
	return "token", nil
}

// ParseToken delegates to ParseFn or accepts any token.
func (s AdminFacadeStub) ParseToken(token string) (string, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	return "admin", nil
}

// Orders delegates to OrdersFn or returns an empty list.
func (s AdminFacadeStub) Orders(ctx context.Context, limit int) ([]model.Order, error) {
	if s.OrdersFn != nil {
		return s.OrdersFn(ctx, limit)
	}
	return nil, nil
}

// Order delegates to OrderFn or returns a placeholder order.
func (s AdminFacadeStub) Order(ctx context.Context, id string) (*model.Order, error) {
	if s.OrderFn != nil {
		return s.OrderFn(ctx, id)
	}
	return &model.Order{ID: id, Status: model.OrderStatusPending}, nil
}

// ImportCatalog delegates to ImportFn or reports zero imports.
func (s AdminFacadeStub) ImportCatalog(ctx context.Context) (int, error) {
	if s.ImportFn != nil {
		return s.ImportFn(ctx)
	}
	return 0, nil
}

// HealthFacadeStub fakes readiness checks.
type HealthFacadeStub struct {
	Err error
}

// Health returns the configured error.
func (s HealthFacadeStub) Health(context.Context) error { return s.Err }

// BotFacadeStub aggregates the handler facade stubs.
type BotFacadeStub struct {
	ChatFacadeStub
	*PaymentFacadeStub
	AdminFacadeStub
	HealthFacadeStub
}

// NewBotFacadeStub builds an aggregate stub with an initialized payment part.
func NewBotFacadeStub() *BotFacadeStub {
	return &BotFacadeStub{PaymentFacadeStub: &PaymentFacadeStub{}}
}
