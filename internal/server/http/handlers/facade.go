package handlers

import (
	"context"

	"github.com/codeskytz/smmbot/internal/domain/model"
)

// ChatFacade handles inbound chat messages.
type ChatFacade interface {
	HandleMessage(ctx context.Context, from, text string) (string, error)
}

// PaymentFacade consumes payment gateway callbacks.
type PaymentFacade interface {
	PaymentEvent(ctx context.Context, orderID, paymentStatus, reference string, payload []byte) error
}

// AdminFacade encapsulates operator operations exposed via HTTP.
type AdminFacade interface {
	AdminLogin(ctx context.Context, login, password string) (string, error)
	ParseToken(token string) (string, error)
	Orders(ctx context.Context, limit int) ([]model.Order, error)
	Order(ctx context.Context, id string) (*model.Order, error)
	ImportCatalog(ctx context.Context) (int, error)
}

// HealthFacade reports service readiness.
type HealthFacade interface {
	Health(ctx context.Context) error
}

// BotFacade aggregates the full set of operations used across handlers.
type BotFacade interface {
	ChatFacade
	PaymentFacade
	AdminFacade
	HealthFacade
}
