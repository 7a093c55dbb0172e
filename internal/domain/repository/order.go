package repository

import (
	"context"
	"time"

	"github.com/codeskytz/smmbot/internal/domain/model"
)

// OrderRepository describes persistence operations with orders.
//
// Status updates are monotonic: once an order reaches a terminal status the
// repository refuses further transitions and reports false.
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (bool, error)

	// MarkPaymentFailed stores the raw gateway payload alongside the
	// PAYMENT_FAILED status.
	MarkPaymentFailed(ctx context.Context, id string, payload []byte, ref *string) error

	// MarkPaymentReceived moves the order to PROCESSING and records the
	// payment reference.
	MarkPaymentReceived(ctx context.Context, id string, ref *string) error

	// ClaimSubmission atomically sets the processing guard. It reports false
	// when the order is already being submitted or already has a remote id,
	// making concurrent webhook deliveries safe.
	ClaimSubmission(ctx context.Context, id string) (bool, error)

	// StoreSubmissionResult persists the provider response and outcome of a
	// submission attempt and clears the processing guard.
	StoreSubmissionResult(ctx context.Context, id string, response []byte, remoteID *string, status model.OrderStatus, completedAt *time.Time) error

	// StorePaymentMeta saves the raw payment gateway payload without touching
	// the status, used for informational webhook deliveries.
	StorePaymentMeta(ctx context.Context, id string, payload []byte) error

	// StoreProviderResponse saves the latest raw provider payload verbatim.
	StoreProviderResponse(ctx context.Context, id string, response []byte) error

	// ClaimReferralCredit flips referredCredited false->true, reporting
	// whether this caller won the flag.
	ClaimReferralCredit(ctx context.Context, id string) (bool, error)

	// SelectBatchForPolling returns orders submitted to the provider but not
	// yet resolved.
	SelectBatchForPolling(ctx context.Context, limit int) ([]model.Order, error)

	ListRecent(ctx context.Context, limit int) ([]model.Order, error)
}
