package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeskytz/smmbot/internal/adapter/chat"
	"github.com/codeskytz/smmbot/internal/adapter/payment"
	"github.com/codeskytz/smmbot/internal/adapter/provider"
	domainErrors "github.com/codeskytz/smmbot/internal/domain/errors"
	"github.com/codeskytz/smmbot/internal/domain/model"
	"github.com/codeskytz/smmbot/internal/domain/repository"
	"github.com/codeskytz/smmbot/internal/pkg/keylock"
)

// failedPaymentStatuses is the set of gateway vocabularies that mean the
// charge did not go through.
var failedPaymentStatuses = map[string]struct{}{
	"FAILED":             {},
	"DECLINED":           {},
	"CANCELLED":          {},
	"ERROR":              {},
	"INSUFFICIENT_FUNDS": {},
	"REJECTED":           {},
}

// CheckoutResult reports the outcome of a checkout attempt.
type CheckoutResult struct {
	Order        *model.Order
	Accepted     bool
	GatewayReply json.RawMessage
}

// LifecycleCoordinator bridges checkout, payment webhook events, and
// provider submission for a persisted order.
type LifecycleCoordinator struct {
	orders      repository.OrderRepository
	provider    provider.Client
	payments    payment.Gateway
	referrals   *ReferralUseCase
	sender      chat.Sender
	locks       *keylock.KeyLock
	callbackURL string
	logger      *slog.Logger
}

// NewLifecycleCoordinator constructs LifecycleCoordinator.
func NewLifecycleCoordinator(
	orders repository.OrderRepository,
	providerClient provider.Client,
	payments payment.Gateway,
	referrals *ReferralUseCase,
	sender chat.Sender,
	callbackURL string,
	logger *slog.Logger,
) *LifecycleCoordinator {
	return &LifecycleCoordinator{
		orders:      orders,
		provider:    providerClient,
		payments:    payments,
		referrals:   referrals,
		sender:      sender,
		locks:       keylock.New(),
		callbackURL: callbackURL,
		logger:      logger,
	}
}

// Checkout persists a PENDING order from a completed draft and asks the
// payment gateway to charge the buyer. The order is stored even when the
// charge initiation fails, so status lookups and retries stay possible.
func (c *LifecycleCoordinator) Checkout(ctx context.Context, order *model.Order) (*CheckoutResult, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.Status = model.OrderStatusPending

	if err := c.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	return c.initiatePayment(ctx, order)
}

// RetryPayment re-attempts the charge for a failed order by cloning it into
// a fresh PENDING order. Terminal statuses never transition, so the retry
// gets its own order id.
func (c *LifecycleCoordinator) RetryPayment(ctx context.Context, orderID string) (*CheckoutResult, error) {
	previous, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if previous.Status != model.OrderStatusPaymentFailed && previous.Status != model.OrderStatusPending {
		return nil, domainErrors.ErrOrderNotPayable
	}

	clone := *previous
	clone.ID = uuid.NewString()
	clone.Status = model.OrderStatusPending
	clone.PaymentMeta = nil
	clone.ProviderResponse = nil
	clone.RemoteOrderID = nil
	clone.PaymentRef = nil
	clone.CompletedAt = nil
	clone.ReferredCredited = false
	clone.Processing = false

	if err := c.orders.Create(ctx, &clone); err != nil {
		return nil, fmt.Errorf("persist retry order: %w", err)
	}
	return c.initiatePayment(ctx, &clone)
}

func (c *LifecycleCoordinator) initiatePayment(ctx context.Context, order *model.Order) (*CheckoutResult, error) {
	reply, err := c.payments.CreatePayment(ctx, payment.Request{
		OrderID:    order.ID,
		BuyerPhone: order.PaymentPhone,
		Amount:     order.AmountDue,
		WebhookURL: c.callbackURL,
	})
	if err != nil {
		c.logger.Error("payment initiation failed",
			slog.String("order_id", order.ID), slog.String("error", err.Error()))
		return &CheckoutResult{Order: order, Accepted: false}, nil
	}

	result := &CheckoutResult{Order: order, Accepted: payment.Accepted(reply), GatewayReply: reply}
	if result.Accepted {
		if _, err := c.orders.UpdateStatus(ctx, order.ID, model.OrderStatusProcessingPayment); err != nil {
			c.logger.Error("status update failed",
				slog.String("order_id", order.ID), slog.String("error", err.Error()))
		} else {
			order.Status = model.OrderStatusProcessingPayment
		}
	} else {
		c.logger.Warn("payment not accepted, admin follow-up needed",
			slog.String("order_id", order.ID), slog.String("reply", string(reply)))
	}
	return result, nil
}

// HandlePaymentEvent processes one payment webhook delivery. It returns
// ErrNotFound only when the order id is unknown; every other outcome is
// acknowledged to keep the gateway from retry-storming.
func (c *LifecycleCoordinator) HandlePaymentEvent(ctx context.Context, orderID, paymentStatus, reference string, payload []byte) error {
	c.locks.Lock(orderID)
	defer c.locks.Unlock(orderID)

	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status.Terminal() {
		// redelivery for a settled order, FAILED and friends must stay put
		c.logger.Info("payment event for settled order, ignoring",
			slog.String("order_id", orderID), slog.String("status", string(order.Status)))
		return nil
	}

	var ref *string
	if reference != "" {
		ref = &reference
	}

	status := strings.ToUpper(strings.TrimSpace(paymentStatus))
	if _, failed := failedPaymentStatuses[status]; failed {
		if err := c.orders.MarkPaymentFailed(ctx, orderID, payload, ref); err != nil {
			c.logger.Error("mark payment failed",
				slog.String("order_id", orderID), slog.String("error", err.Error()))
		}
		c.logger.Warn("payment failed",
			slog.String("order_id", orderID), slog.String("payment_status", status))
		c.notify(ctx, order.SessionID,
			fmt.Sprintf("Payment for order %s was unsuccessful (%s). To try again, reply with *retry %s* in this chat.",
				orderID, status, orderID))
		return nil
	}

	if status != string(model.OrderStatusCompleted) {
		// informational delivery, keep the payload for audit
		if err := c.orders.StorePaymentMeta(ctx, orderID, payload); err != nil {
			c.logger.Error("store payment meta",
				slog.String("order_id", orderID), slog.String("error", err.Error()))
		}
		return nil
	}

	if err := c.orders.MarkPaymentReceived(ctx, orderID, ref); err != nil {
		c.logger.Error("mark payment received",
			slog.String("order_id", orderID), slog.String("error", err.Error()))
	}
	c.logger.Info("payment completed", slog.String("order_id", orderID))

	c.submitToProvider(ctx, order)
	return nil
}

// submitToProvider places the real order with the reseller exactly once,
// guarded by the atomic claim on the order row.
func (c *LifecycleCoordinator) submitToProvider(ctx context.Context, order *model.Order) {
	claimed, err := c.orders.ClaimSubmission(ctx, order.ID)
	if err != nil {
		c.logger.Error("claim submission",
			slog.String("order_id", order.ID), slog.String("error", err.Error()))
		return
	}
	if !claimed {
		c.logger.Info("submission already claimed, skipping",
			slog.String("order_id", order.ID))
		return
	}

	reply, err := c.provider.CreateOrder(ctx, provider.OrderRequest{
		Service:    order.ServiceID,
		Link:       order.Target,
		Quantity:   order.Quantity,
		BuyerPhone: order.PaymentPhone,
	})
	if err != nil {
		c.logger.Error("provider submission failed",
			slog.String("order_id", order.ID), slog.String("error", err.Error()))
		errPayload, _ := json.Marshal(map[string]string{"error": err.Error()})
		if storeErr := c.orders.StoreSubmissionResult(ctx, order.ID, errPayload, nil, model.OrderStatusFailed, nil); storeErr != nil {
			c.logger.Error("store submission failure",
				slog.String("order_id", order.ID), slog.String("error", storeErr.Error()))
		}
		c.notify(ctx, order.SessionID,
			fmt.Sprintf("Payment received for order %s, but automatic submission failed. Admin will review.", order.ID))
		return
	}

	remoteID := provider.ExtractRemoteID(reply)
	var remote *string
	if remoteID != "" {
		remote = &remoteID
	}

	var status model.OrderStatus
	var completedAt *time.Time
	switch provider.NormalizeStatus(reply) {
	case model.RemoteStatusCompleted:
		status = model.OrderStatusCompleted
		now := time.Now()
		completedAt = &now
	case model.RemoteStatusFailed:
		status = model.OrderStatusFailed
	default:
		status = model.OrderStatusProcessing
	}

	if err := c.orders.StoreSubmissionResult(ctx, order.ID, reply, remote, status, completedAt); err != nil {
		c.logger.Error("store submission result",
			slog.String("order_id", order.ID), slog.String("error", err.Error()))
	}
	c.logger.Info("order submitted to provider",
		slog.String("order_id", order.ID),
		slog.String("remote_order_id", remoteID),
		slog.String("status", string(status)))

	switch status {
	case model.OrderStatusCompleted:
		c.creditReferral(ctx, order)
		c.notify(ctx, order.SessionID,
			fmt.Sprintf("✅ Your order %s has been completed.\nService: %s\nQuantity: %d\nRemote id: %s",
				order.ID, order.ServiceName, order.Quantity, orDash(remoteID)))
	case model.OrderStatusFailed:
		c.notify(ctx, order.SessionID,
			fmt.Sprintf("Payment received for order %s, but the provider rejected the order. Please contact admin.", order.ID))
	default:
		c.notify(ctx, order.SessionID,
			fmt.Sprintf("Payment received and order %s submitted to provider. Remote id: %s. We will notify you on updates.",
				order.ID, orDash(remoteID)))
	}
}

// ApplyRemoteStatus reconciles an order against a freshly polled provider
// response, used by the status poller. Status transitions stay monotonic
// because UpdateStatus refuses to leave terminal states.
func (c *LifecycleCoordinator) ApplyRemoteStatus(ctx context.Context, order *model.Order, reply json.RawMessage) {
	if err := c.orders.StoreProviderResponse(ctx, order.ID, reply); err != nil {
		c.logger.Error("store provider response",
			slog.String("order_id", order.ID), slog.String("error", err.Error()))
	}

	switch provider.NormalizeStatus(reply) {
	case model.RemoteStatusCompleted:
		changed, err := c.orders.UpdateStatus(ctx, order.ID, model.OrderStatusCompleted)
		if err != nil {
			c.logger.Error("complete order",
				slog.String("order_id", order.ID), slog.String("error", err.Error()))
			return
		}
		if !changed {
			return
		}
		c.logger.Info("order completed", slog.String("order_id", order.ID))
		c.creditReferral(ctx, order)
		c.notify(ctx, order.SessionID,
			fmt.Sprintf("✅ Your order %s has been completed. Remote id: %s.",
				order.ID, orDash(derefString(order.RemoteOrderID))))
	case model.RemoteStatusFailed:
		changed, err := c.orders.UpdateStatus(ctx, order.ID, model.OrderStatusFailed)
		if err != nil {
			c.logger.Error("fail order",
				slog.String("order_id", order.ID), slog.String("error", err.Error()))
			return
		}
		if !changed {
			return
		}
		c.logger.Warn("order failed at provider", slog.String("order_id", order.ID))
		c.notify(ctx, order.SessionID,
			fmt.Sprintf("⚠️ Your order %s was marked failed by the provider. Please contact support or retry.", order.ID))
	default:
		// still processing or unknown, nothing to update
	}
}

// creditReferral pays the referral bonus for a completed order at most once,
// gated by the atomic claim on the referred_credited flag.
func (c *LifecycleCoordinator) creditReferral(ctx context.Context, order *model.Order) {
	claimed, err := c.orders.ClaimReferralCredit(ctx, order.ID)
	if err != nil {
		c.logger.Error("claim referral credit",
			slog.String("order_id", order.ID), slog.String("error", err.Error()))
		return
	}
	if !claimed {
		return
	}

	buyerPhone := order.SessionID
	if buyerPhone == "" {
		buyerPhone = order.PaymentPhone
	}
	referrer, err := c.referrals.CreditBonus(ctx, buyerPhone)
	if err != nil {
		c.logger.Error("referral credit",
			slog.String("order_id", order.ID), slog.String("error", err.Error()))
		return
	}
	if referrer == nil {
		return
	}

	c.logger.Info("referral bonus credited",
		slog.String("order_id", order.ID), slog.String("referrer", referrer.Phone))
	c.notify(ctx, referrer.Phone,
		fmt.Sprintf("🎉 You earned TZS %s for referring %s. Your new balance is TZS %s. Withdraw when balance reaches TZS %s.",
			FormatAmount(model.ReferralBonus), buyerPhone, FormatAmount(referrer.Balance), FormatAmount(model.WithdrawThreshold)))
	c.notify(ctx, buyerPhone,
		fmt.Sprintf("Thanks for using our service! Your referrer %s has been credited TZS %s.",
			referrer.Phone, FormatAmount(model.ReferralBonus)))
}

// notify delivers a message best effort; failures are logged, never fatal.
func (c *LifecycleCoordinator) notify(ctx context.Context, to, message string) {
	if to == "" {
		return
	}
	if err := c.sender.Send(ctx, to, message); err != nil {
		c.logger.Warn("notification failed",
			slog.String("to", to), slog.String("error", err.Error()))
	}
}

func orDash(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
