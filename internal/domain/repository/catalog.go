package repository

import (
	"context"

	"github.com/codeskytz/smmbot/internal/domain/model"
)

// CatalogRepository stores the curated service catalog.
type CatalogRepository interface {
	// ReplaceServices swaps the whole curated catalog for a fresh import.
	ReplaceServices(ctx context.Context, services []model.Service) error

	ListPlatforms(ctx context.Context) ([]string, error)
	ListCategories(ctx context.Context, platform string) ([]string, error)

	// ListServices returns services for a platform; an empty category matches
	// all of the platform's services.
	ListServices(ctx context.Context, platform, category string) ([]model.Service, error)

	GetByID(ctx context.Context, id string) (*model.Service, error)
}
