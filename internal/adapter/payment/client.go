package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const defaultBuyerName = "WhatsApp User"

// Request carries one mobile money charge.
type Request struct {
	OrderID    string
	BuyerName  string
	BuyerPhone string
	BuyerEmail string
	Amount     float64
	WebhookURL string
}

// Gateway initiates mobile money payments.
type Gateway interface {
	CreatePayment(ctx context.Context, req Request) (json.RawMessage, error)
}

// HTTPGateway implements Gateway against a zenopay style JSON API.
type HTTPGateway struct {
	apiURL     string
	apiKey     string
	buyerEmail string
	httpClient *retryablehttp.Client
	logger     *slog.Logger
}

type chargePayload struct {
	OrderID    string  `json:"order_id"`
	BuyerName  string  `json:"buyer_name"`
	BuyerPhone string  `json:"buyer_phone"`
	BuyerEmail string  `json:"buyer_email"`
	Amount     float64 `json:"amount"`
	WebhookURL string  `json:"webhook_url,omitempty"`
}

// NewHTTPGateway creates a payment gateway client with retries and a hard
// twenty second deadline per attempt.
func NewHTTPGateway(apiURL, apiKey, buyerEmail string, logger *slog.Logger) (*HTTPGateway, error) {
	parsed, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse payment url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("payment url must be absolute")
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 20 * time.Second
	client.Logger = nil

	return &HTTPGateway{
		apiURL:     apiURL,
		apiKey:     apiKey,
		buyerEmail: buyerEmail,
		httpClient: client,
		logger:     logger,
	}, nil
}

// CreatePayment posts a charge to the gateway. A gateway level rejection
// comes back as the response payload, not as an error, so the caller can
// store and inspect it.
func (g *HTTPGateway) CreatePayment(ctx context.Context, req Request) (json.RawMessage, error) {
	payload := chargePayload{
		OrderID:    req.OrderID,
		BuyerName:  req.BuyerName,
		BuyerPhone: FormatPhoneTZ(req.BuyerPhone),
		BuyerEmail: req.BuyerEmail,
		Amount:     req.Amount,
		WebhookURL: req.WebhookURL,
	}
	if payload.BuyerName == "" {
		payload.BuyerName = defaultBuyerName
	}
	if payload.BuyerEmail == "" {
		payload.BuyerEmail = g.buyerEmail
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest && len(respBody) > 0 {
		g.logger.Warn("payment gateway rejected charge",
			slog.String("order_id", req.OrderID),
			slog.Int("status", resp.StatusCode))
		return respBody, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("payment gateway error: %s", resp.Status)
	}
	return respBody, nil
}

// Accepted reports whether a gateway response acknowledges the charge. The
// API signals acceptance with result code "000" or a success-ish status.
func Accepted(raw json.RawMessage) bool {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}

	for _, key := range []string{"resultcode", "code"} {
		switch v := fields[key].(type) {
		case string:
			if v == "000" {
				return true
			}
		case float64:
			// some gateways send the code as a JSON number, 0 means accepted
			if v == 0 {
				return true
			}
		}
	}

	if s, ok := fields["status"].(string); ok {
		upper := strings.ToUpper(s)
		if strings.Contains(upper, "SUCCESS") || upper == "OK" || upper == "ACCEPTED" {
			return true
		}
	}
	return false
}

// FormatPhoneTZ normalizes any Tanzanian phone spelling to local 0XXXXXXXXX
// form. Inputs like +2557..., 2557..., 7XXXXXXXX and 07XXXXXXXX all collapse
// to the same number.
func FormatPhoneTZ(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return ""
	}

	if strings.HasPrefix(d, "255") {
		rest := d[3:]
		if len(rest) == 9 {
			return "0" + rest
		}
		if len(rest) > 9 {
			return "0" + rest[len(rest)-9:]
		}
		return "0" + rest
	}
	if len(d) == 9 && strings.HasPrefix(d, "7") {
		return "0" + d
	}
	if len(d) == 10 && strings.HasPrefix(d, "0") {
		return d
	}
	if len(d) > 9 {
		return "0" + d[len(d)-9:]
	}
	return "0" + d
}
