package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codeskytz/smmbot/internal/domain/model"
)

const catalogCacheTTL = 10 * time.Minute

// staticPlatforms is served when the reseller API is unreachable so the
// dialog can still render a menu.
var staticPlatforms = []string{"Instagram", "Twitter / X", "YouTube", "TikTok", "Telegram"}

// OrderRequest carries the fields of the reseller "add" action.
type OrderRequest struct {
	Service    string
	Link       string
	Quantity   int
	BuyerName  string
	BuyerPhone string
	BuyerEmail string
}

// Client exposes operations against the SMM reseller API.
type Client interface {
	FetchServices(ctx context.Context) ([]model.Service, error)
	Platforms(ctx context.Context) ([]string, error)
	Categories(ctx context.Context, platform string) ([]string, error)
	Services(ctx context.Context, platform, category string) ([]model.Service, error)
	ServiceByID(ctx context.Context, id string) (*model.Service, error)
	CreateOrder(ctx context.Context, req OrderRequest) (json.RawMessage, error)
	OrderStatus(ctx context.Context, remoteID string) (json.RawMessage, error)
}

// HTTPClient implements Client via the form-encoded v2 reseller API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	mu       sync.Mutex
	cached   []model.Service
	cachedAt time.Time
}

// NewHTTPClient creates an HTTP reseller client with default timeout.
func NewHTTPClient(baseURL, apiKey string, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse provider url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("provider url must be absolute")
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

func (c *HTTPClient) post(ctx context.Context, form url.Values) (json.RawMessage, error) {
	form.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("provider request failed",
			slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return nil, fmt.Errorf("provider error: %s", resp.Status)
	}
	return body, nil
}

// FetchServices returns the full reseller service list, cached for ten
// minutes. The response may be a bare array or an object wrapping a "data"
// array.
func (c *HTTPClient) FetchServices(ctx context.Context) ([]model.Service, error) {
	c.mu.Lock()
	if c.cached != nil && time.Since(c.cachedAt) < catalogCacheTTL {
		cached := c.cached
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	form := url.Values{}
	form.Set("action", "services")
	body, err := c.post(ctx, form)
	if err != nil {
		return nil, err
	}

	entries := unwrapArray(body)
	services := make([]model.Service, 0, len(entries))
	now := time.Now()
	for _, entry := range entries {
		svc, ok := parseService(entry)
		if !ok {
			continue
		}
		svc.ImportedAt = now
		services = append(services, svc)
	}

	c.mu.Lock()
	c.cached = services
	c.cachedAt = now
	c.mu.Unlock()
	return services, nil
}

// Platforms derives the platform menu from service metadata, falling back to
// a static list when the provider is unreachable or returns nothing.
func (c *HTTPClient) Platforms(ctx context.Context) ([]string, error) {
	services, err := c.FetchServices(ctx)
	if err != nil || len(services) == 0 {
		if err != nil {
			c.logger.Warn("service list unavailable, serving static platforms",
				slog.String("error", err.Error()))
		}
		return append([]string(nil), staticPlatforms...), nil
	}

	seen := make(map[string]struct{})
	var platforms []string
	for _, svc := range services {
		if _, ok := seen[svc.Platform]; ok {
			continue
		}
		seen[svc.Platform] = struct{}{}
		platforms = append(platforms, svc.Platform)
	}
	return platforms, nil
}

// Categories lists the categories of services matching a platform.
func (c *HTTPClient) Categories(ctx context.Context, platform string) ([]string, error) {
	services, err := c.FetchServices(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var categories []string
	for _, svc := range services {
		if !platformMatches(svc.Platform, platform) {
			continue
		}
		if _, ok := seen[svc.Category]; ok {
			continue
		}
		seen[svc.Category] = struct{}{}
		categories = append(categories, svc.Category)
	}
	if len(categories) == 0 {
		categories = []string{"General"}
	}
	return categories, nil
}

// Services lists services for a platform, optionally narrowed by category.
func (c *HTTPClient) Services(ctx context.Context, platform, category string) ([]model.Service, error) {
	services, err := c.FetchServices(ctx)
	if err != nil {
		return nil, err
	}

	var result []model.Service
	for _, svc := range services {
		if !platformMatches(svc.Platform, platform) {
			continue
		}
		if category != "" && !categoryMatches(svc.Category, category) {
			continue
		}
		result = append(result, svc)
	}
	return result, nil
}

// ServiceByID finds a service by its reseller identifier.
func (c *HTTPClient) ServiceByID(ctx context.Context, id string) (*model.Service, error) {
	if id == "" {
		return nil, fmt.Errorf("empty service id")
	}
	services, err := c.FetchServices(ctx)
	if err != nil {
		return nil, err
	}
	for i := range services {
		if services[i].ID == id {
			return &services[i], nil
		}
	}
	return nil, fmt.Errorf("service %s not found", id)
}

// CreateOrder submits an order via the reseller "add" action and returns the
// raw provider response for the caller to normalize.
func (c *HTTPClient) CreateOrder(ctx context.Context, req OrderRequest) (json.RawMessage, error) {
	form := url.Values{}
	form.Set("action", "add")
	form.Set("service", req.Service)
	form.Set("link", req.Link)
	form.Set("quantity", strconv.Itoa(req.Quantity))
	if req.BuyerName != "" {
		form.Set("buyer_name", req.BuyerName)
	}
	if req.BuyerPhone != "" {
		form.Set("buyer_phone", req.BuyerPhone)
	}
	if req.BuyerEmail != "" {
		form.Set("buyer_email", req.BuyerEmail)
	}
	return c.post(ctx, form)
}

// OrderStatus queries the reseller for the state of a submitted order.
func (c *HTTPClient) OrderStatus(ctx context.Context, remoteID string) (json.RawMessage, error) {
	form := url.Values{}
	form.Set("action", "status")
	form.Set("order", remoteID)
	return c.post(ctx, form)
}

// unwrapArray accepts either a bare JSON array or an object holding one under
// "data".
func unwrapArray(body []byte) []json.RawMessage {
	var entries []json.RawMessage
	if err := json.Unmarshal(body, &entries); err == nil {
		return entries
	}
	var wrapper struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil {
		return wrapper.Data
	}
	return nil
}

// parseService maps one reseller catalog entry onto a Service. Field names
// vary across reseller panels, so every lookup tolerates alternatives.
func parseService(raw json.RawMessage) (model.Service, bool) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.Service{}, false
	}

	id := firstString(fields, "service", "id", "name")
	if id == "" {
		return model.Service{}, false
	}

	name := firstString(fields, "name", "service")
	if name == "" {
		name = "Service " + id
	}

	svc := model.Service{
		ID:       id,
		Platform: derivePlatform(fields),
		Category: deriveCategory(fields),
		Name:     name,
		Raw:      raw,
	}
	if price, ok := numberField(fields, "price", "rate"); ok {
		svc.Price = &price
	}
	return svc, true
}

func derivePlatform(fields map[string]any) string {
	if v := firstString(fields, "category", "service_type"); v != "" {
		return v
	}
	if name := firstString(fields, "name"); name != "" {
		if token := strings.FieldsFunc(name, func(r rune) bool { return r == ' ' || r == '/' }); len(token) > 0 {
			return token[0]
		}
	}
	return "Other"
}

func deriveCategory(fields map[string]any) string {
	if v := firstString(fields, "category2", "subcategory", "category"); v != "" {
		return v
	}
	return "General"
}

func platformMatches(candidate, wanted string) bool {
	if wanted == "" {
		return true
	}
	return candidate == wanted ||
		strings.Contains(strings.ToLower(candidate), strings.ToLower(wanted))
}

func categoryMatches(candidate, wanted string) bool {
	return candidate == wanted ||
		strings.Contains(strings.ToLower(candidate), strings.ToLower(wanted))
}

func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := fields[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func numberField(fields map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := fields[key].(type) {
		case float64:
			return v, true
		case string:
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}
