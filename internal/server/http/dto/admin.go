package dto

import "time"

// LoginRequest describes operator login/password payload.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// TokenResponse carries an issued admin token.
type TokenResponse struct {
	Token string `json:"token"`
}

// OrderResponse describes one order in the admin API.
type OrderResponse struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	ServiceID     string     `json:"service_id"`
	ServiceName   string     `json:"service_name"`
	Platform      string     `json:"platform"`
	Category      string     `json:"category,omitempty"`
	Target        string     `json:"target"`
	Quantity      int        `json:"quantity"`
	AmountDue     float64    `json:"amount_due"`
	PaymentPhone  string     `json:"payment_phone"`
	PaymentRef    *string    `json:"payment_ref,omitempty"`
	RemoteOrderID *string    `json:"remote_order_id,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ImportResponse reports the size of an imported service catalog.
type ImportResponse struct {
	Imported int `json:"imported"`
}
