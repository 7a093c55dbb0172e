package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/codeskytz/smmbot/internal/config"
	domainErrors "github.com/codeskytz/smmbot/internal/domain/errors"
	"github.com/codeskytz/smmbot/internal/domain/model"
	"github.com/codeskytz/smmbot/internal/domain/repository"
	pkgAuth "github.com/codeskytz/smmbot/internal/pkg/auth"
	"github.com/codeskytz/smmbot/internal/usecase"
)

const defaultOrderListLimit = 50

// StatusSource fetches raw status payloads from the reseller panel.
type StatusSource interface {
	OrderStatus(ctx context.Context, remoteID string) (json.RawMessage, error)
}

// ChatNotifier delivers outbound chat messages.
type ChatNotifier interface {
	Send(ctx context.Context, to, message string) error
}

// Pinger reports storage connectivity.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// BotFacade aggregates conversation, order lifecycle, and operator functionality.
type BotFacade struct {
	engine    *usecase.ConversationEngine
	lifecycle *usecase.LifecycleCoordinator
	catalog   *usecase.CatalogUseCase
	orders    repository.OrderRepository
	statuses  StatusSource
	sender    ChatNotifier
	hasher    pkgAuth.PasswordHasher
	tokens    pkgAuth.Strategy
	health    Pinger
	logger    *slog.Logger

	adminLogin string
	adminHash  string
}

// NewBotFacade constructs the application facade. The admin password is hashed
// once at startup; an empty password disables admin login entirely.
func NewBotFacade(
	engine *usecase.ConversationEngine,
	lifecycle *usecase.LifecycleCoordinator,
	catalog *usecase.CatalogUseCase,
	orders repository.OrderRepository,
	statuses StatusSource,
	sender ChatNotifier,
	hasher pkgAuth.PasswordHasher,
	tokens pkgAuth.Strategy,
	health Pinger,
	cfg *config.Config,
	logger *slog.Logger,
) (*BotFacade, error) {
	facade := &BotFacade{
		engine:     engine,
		lifecycle:  lifecycle,
		catalog:    catalog,
		orders:     orders,
		statuses:   statuses,
		sender:     sender,
		hasher:     hasher,
		tokens:     tokens,
		health:     health,
		logger:     logger,
		adminLogin: cfg.AdminLogin,
	}
	if cfg.AdminPassword != "" {
		hash, err := hasher.Hash(cfg.AdminPassword)
		if err != nil {
			return nil, err
		}
		facade.adminHash = hash
	}
	return facade, nil
}

// HandleMessage passes an inbound chat message through the conversation engine
// and delivers the reply back through the chat gateway.
func (f *BotFacade) HandleMessage(ctx context.Context, from, text string) (string, error) {
	_, reply, err := f.engine.HandleIncoming(ctx, from, text)
	if err != nil {
		return "", err
	}
	if reply != "" {
		if err := f.sender.Send(ctx, from, reply); err != nil {
			f.logger.Warn("chat reply delivery failed",
				slog.String("to", from),
				slog.String("error", err.Error()))
		}
	}
	return reply, nil
}

// PaymentEvent applies one payment gateway callback to the order it names.
func (f *BotFacade) PaymentEvent(ctx context.Context, orderID, paymentStatus, reference string, payload []byte) error {
	return f.lifecycle.HandlePaymentEvent(ctx, orderID, paymentStatus, reference, payload)
}

// AdminLogin verifies operator credentials and issues a token.
func (f *BotFacade) AdminLogin(_ context.Context, login, password string) (string, error) {
	if f.adminHash == "" || login != f.adminLogin {
		return "", domainErrors.ErrInvalidCredentials
	}
	if err := f.hasher.Compare(f.adminHash, password); err != nil {
		return "", domainErrors.ErrInvalidCredentials
	}
	return f.tokens.IssueToken(login)
}

// ParseToken validates an admin token and returns its subject.
func (f *BotFacade) ParseToken(token string) (string, error) {
	return f.tokens.ParseToken(token)
}

// Orders lists recently updated orders for the admin API.
func (f *BotFacade) Orders(ctx context.Context, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = defaultOrderListLimit
	}
	return f.orders.ListRecent(ctx, limit)
}

// Order fetches a single order by identifier.
func (f *BotFacade) Order(ctx context.Context, id string) (*model.Order, error) {
	return f.orders.GetByID(ctx, id)
}

// ImportCatalog refreshes the curated catalog from the reseller panel.
func (f *BotFacade) ImportCatalog(ctx context.Context) (int, error) {
	return f.catalog.Import(ctx)
}

// Health reports storage connectivity.
func (f *BotFacade) Health(ctx context.Context) error {
	return f.health.HealthCheck(ctx)
}

// OrdersForPolling returns submitted orders awaiting a terminal status.
func (f *BotFacade) OrdersForPolling(ctx context.Context, limit int) ([]model.Order, error) {
	return f.orders.SelectBatchForPolling(ctx, limit)
}

// RemoteStatus fetches the raw reseller status payload for one remote order.
func (f *BotFacade) RemoteStatus(ctx context.Context, remoteID string) (json.RawMessage, error) {
	return f.statuses.OrderStatus(ctx, remoteID)
}

// ApplyRemoteStatus reconciles a polled status payload into the order lifecycle.
func (f *BotFacade) ApplyRemoteStatus(ctx context.Context, order *model.Order, reply json.RawMessage) {
	f.lifecycle.ApplyRemoteStatus(ctx, order, reply)
}
