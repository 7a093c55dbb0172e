package model

import (
	"encoding/json"
	"time"
)

// OrderStatus describes the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "PENDING"
	OrderStatusProcessingPayment OrderStatus = "PROCESSING_PAYMENT"
	OrderStatusProcessing        OrderStatus = "PROCESSING"
	OrderStatusCompleted         OrderStatus = "COMPLETED"
	OrderStatusFailed            OrderStatus = "FAILED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
	OrderStatusPaymentFailed     OrderStatus = "PAYMENT_FAILED"
)

// Terminal reports whether no further transition is allowed out of the status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled, OrderStatusPaymentFailed:
		return true
	}
	return false
}

// Order is one completed checkout awaiting payment and provider fulfillment.
type Order struct {
	ID        string
	SessionID string

	ServiceID   string
	ServiceName string
	Platform    string
	Category    string
	Target      string
	Quantity    int

	RawPrice            float64
	PricePerUnit        float64
	PriceUnitMultiplier float64
	AmountDue           float64
	PaymentPhone        string

	Status           OrderStatus
	PaymentMeta      json.RawMessage
	ProviderResponse json.RawMessage
	RemoteOrderID    *string
	PaymentRef       *string
	CompletedAt      *time.Time
	ReferredCredited bool

	// Processing guards the provider submission: set before the remote call,
	// cleared after the outcome is persisted.
	Processing bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemoteStatus is the canonical provider status derived from the reseller's
// inconsistent response shapes.
type RemoteStatus string

const (
	RemoteStatusCompleted  RemoteStatus = "COMPLETED"
	RemoteStatusProcessing RemoteStatus = "PROCESSING"
	RemoteStatusFailed     RemoteStatus = "FAILED"
	RemoteStatusUnknown    RemoteStatus = "UNKNOWN"
)
