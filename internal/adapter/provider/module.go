package provider

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/codeskytz/smmbot/internal/config"
)

// Module exposes the reseller client implementation to the fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) (Client, error) {
	return NewHTTPClient(p.Config.ProviderAPIURL, p.Config.ProviderAPIKey, p.Logger)
}
