package postgres

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/codeskytz/smmbot/internal/config"
	"github.com/codeskytz/smmbot/internal/domain/repository"
)

// Module wires PostgreSQL storage and repository adapters.
var Module = fx.Options(
	fx.Provide(newStorage),
	fx.Provide(
		func(s *Storage) repository.SessionRepository { return s.Sessions() },
		func(s *Storage) repository.OrderRepository { return s.Orders() },
		func(s *Storage) repository.UserRepository { return s.Users() },
		func(s *Storage) repository.CatalogRepository { return s.Catalog() },
	),
	fx.Invoke(registerLifecycle),
)

type storageParams struct {
	fx.In

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

func newStorage(p storageParams) (*Storage, error) {
	return New(p.Ctx, p.Config.DatabaseURI, p.Logger)
}

func registerLifecycle(lc fx.Lifecycle, storage *Storage) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			storage.Close()
			return nil
		},
	})
}
