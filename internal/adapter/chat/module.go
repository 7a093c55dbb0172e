package chat

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/codeskytz/smmbot/internal/config"
)

// Module exposes the chat sender implementation to the fx graph.
var Module = fx.Provide(newSender)

type senderParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newSender(p senderParams) (Sender, error) {
	if p.Config.ChatGatewayURL == "" {
		p.Logger.Warn("chat gateway not configured, outbound messages disabled")
		return NopSender{}, nil
	}
	return NewHTTPSender(p.Config.ChatGatewayURL, p.Config.ChatGatewayToken, p.Logger)
}
