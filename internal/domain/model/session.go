package model

import (
	"encoding/json"
	"time"
)

// DialogState identifies the current step of the guided ordering conversation.
type DialogState string

const (
	StateStart          DialogState = "START"
	StateLanguageSelect DialogState = "LANGUAGE_SELECT"
	StatePlatformSelect DialogState = "PLATFORM_SELECT"
	StateCategorySelect DialogState = "CATEGORY_SELECT"
	StateServiceSelect  DialogState = "SERVICE_SELECT"
	StateEnterLink      DialogState = "ENTER_LINK"
	StateEnterQty       DialogState = "ENTER_QTY"
	StatePaymentPhone   DialogState = "PAYMENT_PHONE"
	StateAwaitingPay    DialogState = "AWAITING_PAY"
	StateOrderPlaced    DialogState = "ORDER_PLACED"
)

// ServiceOption is a catalog entry frozen into the session at the moment a
// list is presented, so numeric replies index into exactly what was shown.
type ServiceOption struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price *float64        `json:"price,omitempty"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}

// SessionData is the per-conversation draft accumulated across dialogue turns.
// State duplicates Session.State and must stay in sync on every write.
type SessionData struct {
	State    DialogState `json:"state"`
	Language string      `json:"language,omitempty"`

	Platform   string          `json:"platform,omitempty"`
	Category   string          `json:"category,omitempty"`
	Platforms  []string        `json:"platforms,omitempty"`
	Categories []string        `json:"categories,omitempty"`
	Services   []ServiceOption `json:"services,omitempty"`
	Service    *ServiceOption  `json:"service,omitempty"`

	Target              string  `json:"target,omitempty"`
	Quantity            int     `json:"quantity,omitempty"`
	RawPrice            float64 `json:"raw_price,omitempty"`
	PricePerUnit        float64 `json:"price_per_unit,omitempty"`
	PriceUnitMultiplier float64 `json:"price_unit_multiplier,omitempty"`
	AmountDue           float64 `json:"amount_due_tzs,omitempty"`
	PaymentPhone        string  `json:"payment_phone,omitempty"`

	// OrderID references the most recently placed order for this session.
	OrderID string `json:"order_id,omitempty"`
}

// Session holds one end-user conversation keyed by the chat user identifier.
type Session struct {
	UserID    string
	State     DialogState
	Data      SessionData
	UpdatedAt time.Time
}

// NewSession returns the implicit default session for a first-time user.
func NewSession(userID string) *Session {
	s := &Session{UserID: userID, State: StateStart}
	s.Data.State = StateStart
	return s
}

// SetState moves the dialogue to next and keeps the data mirror in sync.
func (s *Session) SetState(next DialogState) {
	s.State = next
	s.Data.State = next
}

// ResetDraft drops accumulated order fields while preserving the language
// preference and the last order reference. Applied on re-entering the
// platform menu so a new ordering cycle never sees stale draft data.
func (s *Session) ResetDraft() {
	lang := s.Data.Language
	orderID := s.Data.OrderID
	s.Data = SessionData{State: s.State, Language: lang, OrderID: orderID}
}
