package di

import (
	"github.com/codeskytz/smmbot/internal/adapter/chat"
	"github.com/codeskytz/smmbot/internal/adapter/payment"
	"github.com/codeskytz/smmbot/internal/adapter/provider"
	"github.com/codeskytz/smmbot/internal/app"
	"github.com/codeskytz/smmbot/internal/config"
	"github.com/codeskytz/smmbot/internal/logger"
	"github.com/codeskytz/smmbot/internal/pkg/auth"
	"github.com/codeskytz/smmbot/internal/server/http/handlers"
	"github.com/codeskytz/smmbot/internal/server/http/router"
	"github.com/codeskytz/smmbot/internal/session"
	"github.com/codeskytz/smmbot/internal/storage/postgres"
	"github.com/codeskytz/smmbot/internal/usecase"
	"go.uber.org/fx"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		auth.Module,
		postgres.Module,
		provider.Module,
		payment.Module,
		chat.Module,
		session.Module,
		usecase.Module,
		fx.Provide(func(client provider.Client) app.StatusSource { return client }),
		fx.Provide(func(sender chat.Sender) app.ChatNotifier { return sender }),
		fx.Provide(func(storage *postgres.Storage) app.Pinger { return storage }),
		fx.Provide(func(facade *app.BotFacade) handlers.BotFacade { return facade }),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
