package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Sender delivers a message to a chat user. Delivery is best effort; callers
// log failures and move on rather than failing the surrounding operation.
type Sender interface {
	Send(ctx context.Context, to, message string) error
}

// HTTPSender posts outbound messages to a chat gateway.
type HTTPSender struct {
	gatewayURL string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

type outboundMessage struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// NewHTTPSender creates a sender for the configured chat gateway.
func NewHTTPSender(gatewayURL, token string, logger *slog.Logger) (*HTTPSender, error) {
	parsed, err := url.Parse(gatewayURL)
	if err != nil {
		return nil, fmt.Errorf("parse chat gateway url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("chat gateway url must be absolute")
	}
	return &HTTPSender{
		gatewayURL: gatewayURL,
		token:      token,
		logger:     logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Send posts one message to the gateway.
func (s *HTTPSender) Send(ctx context.Context, to, message string) error {
	body, err := json.Marshal(outboundMessage{To: to, Message: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(resp.Body)
		s.logger.Warn("chat gateway rejected message",
			slog.String("to", to),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(respBody)))
		return fmt.Errorf("chat gateway error: %s", resp.Status)
	}
	return nil
}

// NopSender discards messages, used when no gateway is configured.
type NopSender struct{}

// Send implements Sender.
func (NopSender) Send(context.Context, string, string) error { return nil }
