package usecase

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/codeskytz/smmbot/internal/adapter/chat"
	"github.com/codeskytz/smmbot/internal/adapter/payment"
	"github.com/codeskytz/smmbot/internal/adapter/provider"
	"github.com/codeskytz/smmbot/internal/config"
	"github.com/codeskytz/smmbot/internal/domain/repository"
)

// Module provides business logic use cases.
var Module = fx.Provide(
	NewCatalogUseCase,
	NewReferralUseCase,
	newLifecycleCoordinator,
	NewConversationEngine,
)

type lifecycleParams struct {
	fx.In

	Orders    repository.OrderRepository
	Provider  provider.Client
	Payments  payment.Gateway
	Referrals *ReferralUseCase
	Sender    chat.Sender
	Config    *config.Config
	Logger    *slog.Logger
}

func newLifecycleCoordinator(p lifecycleParams) *LifecycleCoordinator {
	return NewLifecycleCoordinator(p.Orders, p.Provider, p.Payments, p.Referrals, p.Sender, p.Config.PaymentCallbackURL, p.Logger)
}
