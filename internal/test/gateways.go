package test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/codeskytz/smmbot/internal/adapter/payment"
	"github.com/codeskytz/smmbot/internal/adapter/provider"
	"github.com/codeskytz/smmbot/internal/domain/model"
)

// ProviderClientStub provides controllable reseller behaviour for tests.
type ProviderClientStub struct {
	mu sync.Mutex

	ServicesList []model.Service
	ServicesErr  error

	CreateOrderFn func(context.Context, provider.OrderRequest) (json.RawMessage, error)
	OrderStatusFn func(context.Context, string) (json.RawMessage, error)

	CreateCalls []provider.OrderRequest
	StatusCalls []string
}

// FetchServices returns the configured service list.
func (s *ProviderClientStub) FetchServices(context.Context) ([]model.Service, error) {
	if s.ServicesErr != nil {
		return nil, s.ServicesErr
	}
	return s.ServicesList, nil
}

// Platforms derives platforms from the configured services.
func (s *ProviderClientStub) Platforms(ctx context.Context) ([]string, error) {
	services, err := s.FetchServices(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var platforms []string
	for _, svc := range services {
		if _, ok := seen[svc.Platform]; ok {
			continue
		}
		seen[svc.Platform] = struct{}{}
		platforms = append(platforms, svc.Platform)
	}
	return platforms, nil
}

// Categories derives categories from the configured services.
func (s *ProviderClientStub) Categories(ctx context.Context, platform string) ([]string, error) {
	services, err := s.FetchServices(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var categories []string
	for _, svc := range services {
		if svc.Platform != platform {
			continue
		}
		if _, ok := seen[svc.Category]; ok {
			continue
		}
		seen[svc.Category] = struct{}{}
		categories = append(categories, svc.Category)
	}
	return categories, nil
}

// Services filters the configured services.
func (s *ProviderClientStub) Services(ctx context.Context, platform, category string) ([]model.Service, error) {
	services, err := s.FetchServices(ctx)
	if err != nil {
		return nil, err
	}
	var result []model.Service
	for _, svc := range services {
		if svc.Platform != platform {
			continue
		}
		if category != "" && svc.Category != category {
			continue
		}
		result = append(result, svc)
	}
	return result, nil
}

// ServiceByID finds a configured service.
func (s *ProviderClientStub) ServiceByID(ctx context.Context, id string) (*model.Service, error) {
	services, err := s.FetchServices(ctx)
	if err != nil {
		return nil, err
	}
	for i := range services {
		if services[i].ID == id {
			return &services[i], nil
		}
	}
	return nil, errors.New("service not found")
}

// CreateOrder records the call and delegates to CreateOrderFn.
func (s *ProviderClientStub) CreateOrder(ctx context.Context, req provider.OrderRequest) (json.RawMessage, error) {
	s.mu.Lock()
	s.CreateCalls = append(s.CreateCalls, req)
	s.mu.Unlock()
	if s.CreateOrderFn != nil {
		return s.CreateOrderFn(ctx, req)
	}
	return json.RawMessage(`{"order": 1}`), nil
}

// OrderStatus records the call and delegates to OrderStatusFn.
func (s *ProviderClientStub) OrderStatus(ctx context.Context, remoteID string) (json.RawMessage, error) {
	s.mu.Lock()
	s.StatusCalls = append(s.StatusCalls, remoteID)
	s.mu.Unlock()
	if s.OrderStatusFn != nil {
		return s.OrderStatusFn(ctx, remoteID)
	}
	return json.RawMessage(`{"status": "Pending"}`), nil
}

// CreateCallCount returns how many submissions were attempted.
func (s *ProviderClientStub) CreateCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.CreateCalls)
}

// PaymentGatewayStub provides controllable charge behaviour for tests.
type PaymentGatewayStub struct {
	mu sync.Mutex

	CreatePaymentFn func(context.Context, string, float64) (json.RawMessage, error)
	Requests        []string
}

// CreatePayment records the order id and delegates to CreatePaymentFn.
func (s *PaymentGatewayStub) CreatePayment(ctx context.Context, req payment.Request) (json.RawMessage, error) {
	s.mu.Lock()
	s.Requests = append(s.Requests, req.OrderID)
	s.mu.Unlock()
	if s.CreatePaymentFn != nil {
		return s.CreatePaymentFn(ctx, req.OrderID, req.Amount)
	}
	return json.RawMessage(`{"resultcode": "000"}`), nil
}

// SenderStub records outbound messages.
type SenderStub struct {
	mu       sync.Mutex
	Messages []SentMessage
	SendErr  error
}

// SentMessage is one recorded delivery.
type SentMessage struct {
	To      string
	Message string
}

// Send records the message.
func (s *SenderStub) Send(_ context.Context, to, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendErr != nil {
		return s.SendErr
	}
	s.Messages = append(s.Messages, SentMessage{To: to, Message: message})
	return nil
}

// Sent returns a snapshot of recorded messages.
func (s *SenderStub) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.Messages...)
}
