package usecase

import (
	"context"
	"log/slog"

	"github.com/codeskytz/smmbot/internal/adapter/provider"
	"github.com/codeskytz/smmbot/internal/domain/model"
	"github.com/codeskytz/smmbot/internal/domain/repository"
)

// CatalogUseCase serves the platform, category, and service menus. The
// curated database catalog is preferred; when it is empty or unreachable the
// live reseller list is used instead.
type CatalogUseCase struct {
	catalog  repository.CatalogRepository
	provider provider.Client
	logger   *slog.Logger
}

// NewCatalogUseCase constructs CatalogUseCase.
func NewCatalogUseCase(catalog repository.CatalogRepository, providerClient provider.Client, logger *slog.Logger) *CatalogUseCase {
	return &CatalogUseCase{catalog: catalog, provider: providerClient, logger: logger}
}

// Platforms lists available platforms.
func (u *CatalogUseCase) Platforms(ctx context.Context) ([]string, error) {
	platforms, err := u.catalog.ListPlatforms(ctx)
	if err == nil && len(platforms) > 0 {
		return platforms, nil
	}
	if err != nil {
		u.logger.Warn("curated platform list unavailable", slog.String("error", err.Error()))
	}
	return u.provider.Platforms(ctx)
}

// Categories lists the categories of a platform.
func (u *CatalogUseCase) Categories(ctx context.Context, platform string) ([]string, error) {
	categories, err := u.catalog.ListCategories(ctx, platform)
	if err == nil && len(categories) > 0 {
		return categories, nil
	}
	if err != nil {
		u.logger.Warn("curated category list unavailable",
			slog.String("platform", platform), slog.String("error", err.Error()))
	}
	return u.provider.Categories(ctx, platform)
}

// Services lists services for a platform, optionally narrowed by category.
func (u *CatalogUseCase) Services(ctx context.Context, platform, category string) ([]model.Service, error) {
	services, err := u.catalog.ListServices(ctx, platform, category)
	if err == nil && len(services) > 0 {
		return services, nil
	}
	if err != nil {
		u.logger.Warn("curated service list unavailable",
			slog.String("platform", platform), slog.String("error", err.Error()))
	}
	return u.provider.Services(ctx, platform, category)
}

// ServiceByID resolves a service for price enrichment, trying the curated
// catalog first and the live reseller list second.
func (u *CatalogUseCase) ServiceByID(ctx context.Context, id string) (*model.Service, error) {
	svc, err := u.catalog.GetByID(ctx, id)
	if err == nil {
		return svc, nil
	}
	return u.provider.ServiceByID(ctx, id)
}

// Import refreshes the curated catalog from the live reseller list and
// returns how many services were imported.
func (u *CatalogUseCase) Import(ctx context.Context) (int, error) {
	services, err := u.provider.FetchServices(ctx)
	if err != nil {
		return 0, err
	}
	if err := u.catalog.ReplaceServices(ctx, services); err != nil {
		return 0, err
	}
	return len(services), nil
}
