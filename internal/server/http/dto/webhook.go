package dto

// PaymentWebhookRequest describes the payment gateway callback payload.
type PaymentWebhookRequest struct {
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
	Reference     string `json:"reference"`
}

// WebhookAck acknowledges a processed webhook delivery.
type WebhookAck struct {
	Received bool `json:"received"`
}
