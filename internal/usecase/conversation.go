package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/codeskytz/smmbot/internal/adapter/payment"
	domainErrors "github.com/codeskytz/smmbot/internal/domain/errors"
	"github.com/codeskytz/smmbot/internal/domain/model"
	"github.com/codeskytz/smmbot/internal/domain/repository"
	"github.com/codeskytz/smmbot/internal/pkg/keylock"
	"github.com/codeskytz/smmbot/internal/session"
)

// ConversationEngine drives the guided ordering dialogue. Turns for the same
// user are serialized with a per-user lock; turns for different users run
// concurrently.
type ConversationEngine struct {
	sessions  *session.Store
	catalog   *CatalogUseCase
	orders    repository.OrderRepository
	referrals *ReferralUseCase
	lifecycle *LifecycleCoordinator
	locks     *keylock.KeyLock
	logger    *slog.Logger
}

// NewConversationEngine constructs ConversationEngine.
func NewConversationEngine(
	sessions *session.Store,
	catalog *CatalogUseCase,
	orders repository.OrderRepository,
	referrals *ReferralUseCase,
	lifecycle *LifecycleCoordinator,
	logger *slog.Logger,
) *ConversationEngine {
	return &ConversationEngine{
		sessions:  sessions,
		catalog:   catalog,
		orders:    orders,
		referrals: referrals,
		lifecycle: lifecycle,
		locks:     keylock.New(),
		logger:    logger,
	}
}

// HandleIncoming processes one inbound message and returns the updated
// session together with the reply text.
func (e *ConversationEngine) HandleIncoming(ctx context.Context, userID, text string) (*model.Session, string, error) {
	e.locks.Lock(userID)
	defer e.locks.Unlock(userID)

	sess, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)

	if reply, handled := e.handleGlobalCommand(ctx, sess, text, lower); handled {
		return sess, reply, nil
	}

	var reply string
	switch sess.State {
	case model.StateStart:
		reply = e.enterPlatformSelect(ctx, sess)
	case model.StatePlatformSelect:
		reply = e.handlePlatformSelect(ctx, sess, text)
	case model.StateCategorySelect:
		reply = e.handleCategorySelect(ctx, sess, text)
	case model.StateServiceSelect:
		reply = e.handleServiceSelect(ctx, sess, text)
	case model.StateEnterLink:
		reply = e.handleEnterLink(ctx, sess, text)
	case model.StateEnterQty:
		reply = e.handleEnterQty(ctx, sess, text)
	case model.StatePaymentPhone:
		reply = e.handlePaymentPhone(ctx, sess, text)
	default:
		reply = "Sorry, I did not understand that. Type *.help* for options."
	}

	if err := e.sessions.Save(ctx, sess); err != nil {
		e.logger.Warn("session save failed",
			slog.String("user_id", userID), slog.String("error", err.Error()))
	}
	return sess, reply, nil
}

// handleGlobalCommand checks the commands available in every state. It
// reports whether the input was consumed; commands other than back/cancel/
// menu never advance the ordering flow.
func (e *ConversationEngine) handleGlobalCommand(ctx context.Context, sess *model.Session, text, lower string) (string, bool) {
	switch {
	case lower == "back" || lower == "cancel" || lower == "menu":
		reply := e.enterPlatformSelect(ctx, sess)
		e.save(ctx, sess)
		return reply, true

	case strings.HasPrefix(lower, ".status"):
		return e.handleStatusCommand(ctx, sess, text), true

	case lower == ".help" || lower == "help":
		return helpText(), true

	case lower == "language" || lower == "lang":
		return "Usage: *language en* or *language sw*.", true

	case strings.HasPrefix(lower, "language ") || strings.HasPrefix(lower, "lang "):
		return e.handleLanguageCommand(ctx, sess, lower), true

	case strings.HasPrefix(lower, "referral "):
		referrer := strings.TrimSpace(text[len("referral "):])
		if err := e.referrals.Register(ctx, sess.UserID, referrer); err != nil {
			return referralErrorText(err), true
		}
		return fmt.Sprintf("Referral registered. %s will earn TZS %s when your orders complete.",
			referrer, FormatAmount(model.ReferralBonus)), true

	case lower == "my code":
		code, err := e.referrals.Code(ctx, sess.UserID)
		if err != nil {
			e.logger.Error("referral code", slog.String("error", err.Error()))
			return "Could not fetch your referral code right now. Please try again later.", true
		}
		return fmt.Sprintf("Your referral code is *%s*. Share it! New users can register it with *referral %s*.", code, code), true

	case lower == "referrals":
		referees, err := e.referrals.Referees(ctx, sess.UserID)
		if err != nil {
			e.logger.Error("list referees", slog.String("error", err.Error()))
			return "Could not fetch your referrals right now. Please try again later.", true
		}
		if len(referees) == 0 {
			return "You have no referrals yet. Share your code with *my code*.", true
		}
		lines := []string{fmt.Sprintf("*You have %d referral(s):*", len(referees))}
		for i, r := range referees {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, r.Phone))
		}
		return strings.Join(lines, "\n"), true

	case lower == "balance":
		user, err := e.referrals.Balance(ctx, sess.UserID)
		if err != nil {
			e.logger.Error("balance", slog.String("error", err.Error()))
			return "Could not fetch your balance right now. Please try again later.", true
		}
		return fmt.Sprintf("Your balance is TZS %s. Withdrawn so far: TZS %s. Minimum withdrawal balance is TZS %s.",
			FormatAmount(user.Balance), FormatAmount(user.Withdrawn), FormatAmount(model.WithdrawThreshold)), true

	case strings.HasPrefix(lower, "withdraw"):
		return e.handleWithdrawCommand(ctx, sess, text), true

	case strings.HasPrefix(lower, "retry"):
		return e.handleRetryCommand(ctx, sess, text), true
	}
	return "", false
}

func (e *ConversationEngine) handleStatusCommand(ctx context.Context, sess *model.Session, text string) string {
	parts := strings.Fields(text)
	orderID := ""
	if len(parts) > 1 {
		orderID = parts[1]
	} else if sess.Data.OrderID != "" {
		orderID = sess.Data.OrderID
	}
	if orderID == "" {
		return "Usage: .status <order_id>"
	}

	order, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return fmt.Sprintf("Order %s not found.", orderID)
		}
		e.logger.Error("status lookup",
			slog.String("order_id", orderID), slog.String("error", err.Error()))
		return "Could not look up that order right now. Please try again later."
	}

	lines := []string{
		fmt.Sprintf("*Order %s*", order.ID),
		fmt.Sprintf("Status: %s", order.Status),
		fmt.Sprintf("Service: %s", order.ServiceName),
		fmt.Sprintf("Quantity: %d", order.Quantity),
		fmt.Sprintf("Total: TZS %s", FormatAmount(order.AmountDue)),
	}
	if order.RemoteOrderID != nil && *order.RemoteOrderID != "" {
		lines = append(lines, fmt.Sprintf("Remote id: %s", *order.RemoteOrderID))
	}
	if order.CompletedAt != nil {
		lines = append(lines, fmt.Sprintf("Completed at: %s", order.CompletedAt.Format("2006-01-02 15:04")))
	}
	return strings.Join(lines, "\n")
}

func (e *ConversationEngine) handleLanguageCommand(ctx context.Context, sess *model.Session, lower string) string {
	parts := strings.Fields(lower)
	if len(parts) < 2 || (parts[1] != "en" && parts[1] != "sw") {
		return "Usage: *language en* or *language sw*."
	}
	sess.Data.Language = parts[1]
	e.save(ctx, sess)
	if err := e.referrals.SetLanguage(ctx, sess.UserID, parts[1]); err != nil {
		e.logger.Warn("persist language", slog.String("error", err.Error()))
	}
	if parts[1] == "sw" {
		return "Lugha imewekwa kuwa Kiswahili."
	}
	return "Language set to English."
}

func (e *ConversationEngine) handleWithdrawCommand(ctx context.Context, sess *model.Session, text string) string {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return "Usage: *withdraw <amount>*"
	}
	amount, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "Usage: *withdraw <amount>*"
	}

	user, err := e.referrals.Withdraw(ctx, sess.UserID, amount)
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrInvalidAmount):
			return "Withdrawal amount must be greater than zero."
		case errors.Is(err, domainErrors.ErrBelowMinimumBalance):
			return fmt.Sprintf("Your balance must reach TZS %s before you can withdraw.", FormatAmount(model.WithdrawThreshold))
		case errors.Is(err, domainErrors.ErrInsufficientBalance):
			return "You do not have enough balance for that amount."
		}
		e.logger.Error("withdraw", slog.String("error", err.Error()))
		return "Could not process the withdrawal right now. Please try again later."
	}
	return fmt.Sprintf("Withdrawal of TZS %s requested. Remaining balance: TZS %s.",
		FormatAmount(amount), FormatAmount(user.Balance))
}

func (e *ConversationEngine) handleRetryCommand(ctx context.Context, sess *model.Session, text string) string {
	parts := strings.Fields(text)
	orderID := sess.Data.OrderID
	if len(parts) > 1 {
		orderID = parts[1]
	}
	if orderID == "" {
		return "Usage: *retry <order_id>*"
	}

	result, err := e.lifecycle.RetryPayment(ctx, orderID)
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrNotFound):
			return fmt.Sprintf("Order %s not found.", orderID)
		case errors.Is(err, domainErrors.ErrOrderNotPayable):
			return fmt.Sprintf("Order %s is not awaiting payment, so it cannot be retried.", orderID)
		}
		e.logger.Error("retry payment",
			slog.String("order_id", orderID), slog.String("error", err.Error()))
		return "Could not retry that payment right now. Please try again later."
	}

	sess.Data.OrderID = result.Order.ID
	e.save(ctx, sess)
	if result.Accepted {
		return fmt.Sprintf("Retry started as order %s. Check your phone for the payment prompt.", result.Order.ID)
	}
	return fmt.Sprintf("Retry for order %s could not be started: %s. Admin has been notified.",
		result.Order.ID, gatewayErrorText(result))
}

// enterPlatformSelect resets the draft and renders the platform menu. The
// menu shown is frozen into the session so later numeric replies index the
// exact list the user saw.
func (e *ConversationEngine) enterPlatformSelect(ctx context.Context, sess *model.Session) string {
	sess.ResetDraft()
	sess.SetState(model.StatePlatformSelect)

	platforms, err := e.catalog.Platforms(ctx)
	if err != nil || len(platforms) == 0 {
		if err != nil {
			e.logger.Warn("platform list", slog.String("error", err.Error()))
		}
		platforms = []string{"Instagram", "Twitter / X", "YouTube", "TikTok", "Telegram"}
	}
	sess.Data.Platforms = platforms

	lines := []string{
		"*👋 Welcome to CodeSkytz SMM Bot!*",
		"",
		"*Choose a platform to get started:*",
	}
	for i, p := range platforms {
		lines = append(lines, fmt.Sprintf("%d. *%s*", i+1, p))
	}
	lines = append(lines, "",
		"Reply with the number of the platform (e.g. *1*).",
		"Type *.help* for help or *.status <order_id>* to check an order.")
	return strings.Join(lines, "\n")
}

func (e *ConversationEngine) handlePlatformSelect(ctx context.Context, sess *model.Session, text string) string {
	idx, ok := parseChoice(text, len(sess.Data.Platforms))
	if !ok {
		return "Invalid choice. Please reply with the number of the platform from the list (e.g. *1*)."
	}
	platform := sess.Data.Platforms[idx]
	sess.Data.Platform = platform

	categories, err := e.catalog.Categories(ctx, platform)
	if err != nil {
		e.logger.Warn("category list",
			slog.String("platform", platform), slog.String("error", err.Error()))
		categories = nil
	}

	if len(categories) == 0 {
		// platform has no categories, list its services directly
		return e.presentServices(ctx, sess, platform, "")
	}

	sess.Data.Categories = categories
	sess.SetState(model.StateCategorySelect)

	lines := []string{fmt.Sprintf("*%s* selected. Choose a category:", platform), ""}
	for i, c := range categories {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, c))
	}
	lines = append(lines, "", "Reply with the number of the category.")
	return strings.Join(lines, "\n")
}

func (e *ConversationEngine) handleCategorySelect(ctx context.Context, sess *model.Session, text string) string {
	idx, ok := parseChoice(text, len(sess.Data.Categories))
	if !ok {
		return "Invalid choice. Please reply with the number of the category from the list."
	}
	category := sess.Data.Categories[idx]
	return e.presentServices(ctx, sess, sess.Data.Platform, category)
}

func (e *ConversationEngine) presentServices(ctx context.Context, sess *model.Session, platform, category string) string {
	services, err := e.catalog.Services(ctx, platform, category)
	if err != nil {
		e.logger.Warn("service list",
			slog.String("platform", platform), slog.String("error", err.Error()))
	}
	if len(services) == 0 {
		return "No services found for that selection. Reply with another number or *menu* to start over."
	}

	sess.Data.Category = category
	options := make([]model.ServiceOption, 0, len(services))
	for _, svc := range services {
		options = append(options, svc.Option())
	}
	sess.Data.Services = options
	sess.SetState(model.StateServiceSelect)

	lines := []string{"*Available services:*", ""}
	for i, opt := range options {
		if opt.Price != nil {
			lines = append(lines, fmt.Sprintf("%d. %s — TZS %s", i+1, opt.Name, FormatAmount(*opt.Price)))
		} else {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, opt.Name))
		}
	}
	lines = append(lines, "", "Reply with the number of the service.")
	return strings.Join(lines, "\n")
}

func (e *ConversationEngine) handleServiceSelect(ctx context.Context, sess *model.Session, text string) string {
	idx, ok := parseChoice(text, len(sess.Data.Services))
	if !ok {
		return "Invalid choice. Please reply with the number of the service from the list."
	}
	chosen := sess.Data.Services[idx]

	// best effort price enrichment, silence lookup failures
	if chosen.Price == nil {
		if svc, err := e.catalog.ServiceByID(ctx, chosen.ID); err == nil && svc.Price != nil {
			chosen.Price = svc.Price
		}
	}

	sess.Data.Service = &chosen
	sess.SetState(model.StateEnterLink)
	return fmt.Sprintf("*%s* selected. Now send the link or username the order should target (e.g. your profile or post URL).", chosen.Name)
}

func (e *ConversationEngine) handleEnterLink(_ context.Context, sess *model.Session, text string) string {
	if text == "" {
		return "Please send a link or username for the order target."
	}
	sess.Data.Target = text
	sess.SetState(model.StateEnterQty)
	return "Got it. Now send the quantity you want (a whole number, e.g. *1000*)."
}

func (e *ConversationEngine) handleEnterQty(_ context.Context, sess *model.Session, text string) string {
	qty, err := strconv.Atoi(text)
	if err != nil || qty <= 0 {
		return "Quantity must be a positive whole number (e.g. *1000*). Please try again."
	}

	rawPrice := 0.0
	serviceText := ""
	if sess.Data.Service != nil {
		serviceText = sess.Data.Service.Name + " " + string(sess.Data.Service.Raw)
		if sess.Data.Service.Price != nil {
			rawPrice = *sess.Data.Service.Price
		}
	}

	pricing := ResolvePricing(rawPrice, serviceText, qty)
	sess.Data.Quantity = qty
	sess.Data.RawPrice = pricing.RawPrice
	sess.Data.PricePerUnit = pricing.PricePerUnit
	sess.Data.PriceUnitMultiplier = pricing.Multiplier
	sess.Data.AmountDue = pricing.Total
	sess.SetState(model.StatePaymentPhone)

	serviceName := ""
	if sess.Data.Service != nil {
		serviceName = sess.Data.Service.Name
	}
	lines := []string{
		"*Order summary:*",
		fmt.Sprintf("Service: %s", serviceName),
		fmt.Sprintf("Target: %s", sess.Data.Target),
		fmt.Sprintf("Quantity: %d", qty),
		fmt.Sprintf("Unit price: TZS %s", FormatAmount(pricing.PricePerUnit)),
		fmt.Sprintf("Total: TZS %s", FormatAmount(pricing.Total)),
		"",
		"Send the mobile money phone number to charge (e.g. *0712345678*).",
	}
	return strings.Join(lines, "\n")
}

func (e *ConversationEngine) handlePaymentPhone(ctx context.Context, sess *model.Session, text string) string {
	phone := payment.FormatPhoneTZ(text)
	if phone == "" {
		return "That does not look like a phone number. Please send the mobile money number to charge (e.g. *0712345678*)."
	}
	sess.Data.PaymentPhone = phone

	order := e.orderFromDraft(sess)
	result, err := e.lifecycle.Checkout(ctx, order)
	if err != nil {
		e.logger.Error("checkout",
			slog.String("user_id", sess.UserID), slog.String("error", err.Error()))
		return "Could not create your order right now. Please try again in a moment."
	}

	sess.Data.OrderID = result.Order.ID
	sess.SetState(model.StateOrderPlaced)

	if result.Accepted {
		return fmt.Sprintf("Order *%s* created. Check phone %s for the payment prompt of TZS %s. "+
			"You will be notified when payment is confirmed. Use *.status %s* any time.",
			result.Order.ID, phone, FormatAmount(order.AmountDue), result.Order.ID)
	}
	return fmt.Sprintf("Order *%s* was created but payment could not be started: %s. "+
		"Reply *retry %s* to try again, admin has been notified.",
		result.Order.ID, gatewayErrorText(result), result.Order.ID)
}

func (e *ConversationEngine) orderFromDraft(sess *model.Session) *model.Order {
	order := &model.Order{
		SessionID:           sess.UserID,
		Platform:            sess.Data.Platform,
		Category:            sess.Data.Category,
		Target:              sess.Data.Target,
		Quantity:            sess.Data.Quantity,
		RawPrice:            sess.Data.RawPrice,
		PricePerUnit:        sess.Data.PricePerUnit,
		PriceUnitMultiplier: sess.Data.PriceUnitMultiplier,
		AmountDue:           sess.Data.AmountDue,
		PaymentPhone:        sess.Data.PaymentPhone,
	}
	if sess.Data.Service != nil {
		order.ServiceID = sess.Data.Service.ID
		order.ServiceName = sess.Data.Service.Name
	}
	return order
}

// save persists the session mid-command; engine-level saves also happen at
// the end of the turn, the double write is harmless.
func (e *ConversationEngine) save(ctx context.Context, sess *model.Session) {
	if err := e.sessions.Save(ctx, sess); err != nil {
		e.logger.Warn("session save failed",
			slog.String("user_id", sess.UserID), slog.String("error", err.Error()))
	}
}

func parseChoice(text string, size int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > size {
		return 0, false
	}
	return n - 1, true
}

func gatewayErrorText(result *CheckoutResult) string {
	if len(result.GatewayReply) > 0 {
		return string(result.GatewayReply)
	}
	return "gateway unavailable"
}

func referralErrorText(err error) string {
	switch {
	case errors.Is(err, domainErrors.ErrSelfReferral):
		return "You cannot refer yourself."
	case errors.Is(err, domainErrors.ErrReferralAlreadySet):
		return "A referrer is already registered for your account."
	case errors.Is(err, domainErrors.ErrNotFound):
		return "That referral code or phone was not found."
	}
	return "Could not register the referral right now. Please try again later."
}

func helpText() string {
	return "*Help — Quick Commands*\n\n" +
		"• Reply with a number to pick from the current list.\n" +
		"• *menu* / *back* / *cancel* — return to the platform menu.\n" +
		"• *.status <order_id>* — check an order status.\n" +
		"• *retry <order_id>* — retry a failed payment.\n" +
		"• *referral <phone or code>* — register who referred you.\n" +
		"• *my code* / *referrals* / *balance* / *withdraw <amount>* — referral account.\n" +
		"• *language en|sw* — switch language.\n\n" +
		"Each step will include instructions for what to send next."
}
