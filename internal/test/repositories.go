package test

import (
	"context"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/codeskytz/smmbot/internal/domain/errors"
	"github.com/codeskytz/smmbot/internal/domain/model"
)

// SessionRepositoryStub is an in-memory SessionRepository.
type SessionRepositoryStub struct {
	mu       sync.Mutex
	Sessions map[string]*model.Session
	GetErr   error
	SaveErr  error
}

// NewSessionRepositoryStub constructs an empty stub.
func NewSessionRepositoryStub() *SessionRepositoryStub {
	return &SessionRepositoryStub{Sessions: make(map[string]*model.Session)}
}

// Get returns a stored session or ErrNotFound.
func (s *SessionRepositoryStub) Get(_ context.Context, userID string) (*model.Session, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.Sessions[userID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

// Save stores a session copy.
func (s *SessionRepositoryStub) Save(_ context.Context, session *model.Session) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.Sessions[session.UserID] = &copied
	return nil
}

// OrderRepositoryStub is an in-memory OrderRepository.
type OrderRepositoryStub struct {
	mu        sync.Mutex
	Orders    map[string]*model.Order
	CreateErr error
}

// NewOrderRepositoryStub constructs an empty stub.
func NewOrderRepositoryStub() *OrderRepositoryStub {
	return &OrderRepositoryStub{Orders: make(map[string]*model.Order)}
}

// Create stores a new order.
func (s *OrderRepositoryStub) Create(_ context.Context, order *model.Order) error {
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.Orders[order.ID]; exists {
		return domainErrors.ErrAlreadyExists
	}
	copied := *order
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	s.Orders[order.ID] = &copied
	return nil
}

// GetByID returns a stored order or ErrNotFound.
func (s *OrderRepositoryStub) GetByID(_ context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.Orders[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

// UpdateStatus applies a monotonic status transition.
func (s *OrderRepositoryStub) UpdateStatus(_ context.Context, id string, status model.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.Orders[id]
	if !ok || order.Status.Terminal() {
		return false, nil
	}
	order.Status = status
	if status == model.OrderStatusCompleted && order.CompletedAt == nil {
		now := time.Now()
		order.CompletedAt = &now
	}
	order.UpdatedAt = time.Now()
	return true, nil
}

// MarkPaymentFailed moves a non-terminal order to PAYMENT_FAILED.
func (s *OrderRepositoryStub) MarkPaymentFailed(_ context.Context, id string, payload []byte, ref *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.Orders[id]
	if !ok || order.Status.Terminal() {
		return nil
	}
	order.Status = model.OrderStatusPaymentFailed
	order.PaymentMeta = payload
	if ref != nil {
		order.PaymentRef = ref
	}
	return nil
}

// MarkPaymentReceived moves a non-terminal order to PROCESSING.
func (s *OrderRepositoryStub) MarkPaymentReceived(_ context.Context, id string, ref *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.Orders[id]
	if !ok || order.Status.Terminal() {
		return nil
	}
	order.Status = model.OrderStatusProcessing
	if ref != nil {
		order.PaymentRef = ref
	}
	return nil
}

// ClaimSubmission wins once per order.
func (s *OrderRepositoryStub) ClaimSubmission(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.Orders[id]
	if !ok || order.Processing || order.RemoteOrderID != nil || order.Status.Terminal() {
		return false, nil
	}
	order.Processing = true
	return true, nil
}

// StoreSubmissionResult records the provider submission outcome.
func (s *OrderRepositoryStub) StoreSubmissionResult(_ context.Context, id string, response []byte, remoteID *string, status model.OrderStatus, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.Orders[id]
	if !ok {
		return domainErrors.ErrNotFound
	}
	order.ProviderResponse = response
	order.RemoteOrderID = remoteID
	order.Status = status
	if completedAt != nil {
		order.CompletedAt = completedAt
	}
	order.Processing = false
	return nil
}

// StorePaymentMeta records a raw gateway payload.
func (s *OrderRepositoryStub) StorePaymentMeta(_ context.Context, id string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order, ok := s.Orders[id]; ok {
		order.PaymentMeta = payload
	}
	return nil
}

// StoreProviderResponse records a raw provider payload.
func (s *OrderRepositoryStub) StoreProviderResponse(_ context.Context, id string, response []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order, ok := s.Orders[id]; ok {
		order.ProviderResponse = response
	}
	return nil
}

// ClaimReferralCredit wins once per order.
func (s *OrderRepositoryStub) ClaimReferralCredit(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.Orders[id]
	if !ok || order.ReferredCredited {
		return false, nil
	}
	order.ReferredCredited = true
	return true, nil
}

// SelectBatchForPolling returns unresolved submitted orders.
func (s *OrderRepositoryStub) SelectBatchForPolling(_ context.Context, limit int) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.Order
	for _, order := range s.Orders {
		if order.RemoteOrderID == nil {
			continue
		}
		if order.Status != model.OrderStatusProcessing && order.Status != model.OrderStatusPending {
			continue
		}
		result = append(result, *order)
		if len(result) == limit {
			break
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListRecent returns stored orders, newest first by id ordering.
func (s *OrderRepositoryStub) ListRecent(_ context.Context, limit int) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.Order
	for _, order := range s.Orders {
		result = append(result, *order)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UserRepositoryStub is an in-memory UserRepository.
type UserRepositoryStub struct {
	mu    sync.Mutex
	Users map[string]*model.User
}

// NewUserRepositoryStub constructs an empty stub.
func NewUserRepositoryStub() *UserRepositoryStub {
	return &UserRepositoryStub{Users: make(map[string]*model.User)}
}

// GetByPhone returns a stored user or ErrNotFound.
func (s *UserRepositoryStub) GetByPhone(_ context.Context, phone string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.Users[phone]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// GetOrCreate returns an existing user or creates one lazily.
func (s *UserRepositoryStub) GetOrCreate(_ context.Context, phone string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.Users[phone]; ok {
		copied := *user
		return &copied, nil
	}
	user := &model.User{Phone: phone, Language: "en", CreatedAt: time.Now()}
	s.Users[phone] = user
	copied := *user
	return &copied, nil
}

// GetByReferralCode finds a user owning the code.
func (s *UserRepositoryStub) GetByReferralCode(_ context.Context, code string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.Users {
		if user.ReferralCode != nil && *user.ReferralCode == code {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

// SetReferredBy records the referrer set-once.
func (s *UserRepositoryStub) SetReferredBy(_ context.Context, phone, referrer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.Users[phone]
	if !ok {
		return domainErrors.ErrNotFound
	}
	if user.ReferredBy != nil {
		return domainErrors.ErrReferralAlreadySet
	}
	user.ReferredBy = &referrer
	return nil
}

// SetReferralCode records a unique referral code.
func (s *UserRepositoryStub) SetReferralCode(_ context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.Users {
		if user.ReferralCode != nil && *user.ReferralCode == code {
			return domainErrors.ErrAlreadyExists
		}
	}
	user, ok := s.Users[phone]
	if !ok {
		return domainErrors.ErrNotFound
	}
	user.ReferralCode = &code
	return nil
}

// SetLanguage stores the language preference.
func (s *UserRepositoryStub) SetLanguage(_ context.Context, phone, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.Users[phone]; ok {
		user.Language = language
	}
	return nil
}

// ListReferees returns users referred by the given phone.
func (s *UserRepositoryStub) ListReferees(_ context.Context, referrer string) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.User
	for _, user := range s.Users {
		if user.ReferredBy != nil && *user.ReferredBy == referrer {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Phone < result[j].Phone })
	return result, nil
}

// CreditBonus credits the referral bonus and bumps the counter.
func (s *UserRepositoryStub) CreditBonus(_ context.Context, phone string, amount float64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.Users[phone]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	user.Balance += amount
	user.Referrals++
	copied := *user
	return &copied, nil
}

// Withdraw debits the balance when funds are sufficient.
func (s *UserRepositoryStub) Withdraw(_ context.Context, phone string, amount float64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.Users[phone]
	if !ok || user.Balance < amount {
		return nil, domainErrors.ErrInsufficientBalance
	}
	user.Balance -= amount
	user.Withdrawn += amount
	copied := *user
	return &copied, nil
}

// CatalogRepositoryStub is an in-memory CatalogRepository.
type CatalogRepositoryStub struct {
	mu       sync.Mutex
	Services []model.Service
	ListErr  error
}

// NewCatalogRepositoryStub constructs a stub seeded with services.
func NewCatalogRepositoryStub(services ...model.Service) *CatalogRepositoryStub {
	return &CatalogRepositoryStub{Services: services}
}

// ReplaceServices swaps the stored service list.
func (s *CatalogRepositoryStub) ReplaceServices(_ context.Context, services []model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Services = append([]model.Service(nil), services...)
	return nil
}

// ListPlatforms returns distinct platforms.
func (s *CatalogRepositoryStub) ListPlatforms(_ context.Context) ([]string, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var platforms []string
	for _, svc := range s.Services {
		if _, ok := seen[svc.Platform]; ok {
			continue
		}
		seen[svc.Platform] = struct{}{}
		platforms = append(platforms, svc.Platform)
	}
	return platforms, nil
}

// ListCategories returns distinct categories for a platform.
func (s *CatalogRepositoryStub) ListCategories(_ context.Context, platform string) ([]string, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var categories []string
	for _, svc := range s.Services {
		if svc.Platform != platform || svc.Category == "" {
			continue
		}
		if _, ok := seen[svc.Category]; ok {
			continue
		}
		seen[svc.Category] = struct{}{}
		categories = append(categories, svc.Category)
	}
	return categories, nil
}

// ListServices returns services for a platform and optional category.
func (s *CatalogRepositoryStub) ListServices(_ context.Context, platform, category string) ([]model.Service, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.Service
	for _, svc := range s.Services {
		if svc.Platform != platform {
			continue
		}
		if category != "" && svc.Category != category {
			continue
		}
		result = append(result, svc)
	}
	return result, nil
}

// GetByID finds a service by id.
func (s *CatalogRepositoryStub) GetByID(_ context.Context, id string) (*model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Services {
		if s.Services[i].ID == id {
			copied := s.Services[i]
			return &copied, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}
