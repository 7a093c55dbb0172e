package repository

import (
	"context"

	"github.com/codeskytz/smmbot/internal/domain/model"
)

// UserRepository describes persistence operations for referral accounts.
type UserRepository interface {
	GetByPhone(ctx context.Context, phone string) (*model.User, error)
	GetOrCreate(ctx context.Context, phone string) (*model.User, error)
	GetByReferralCode(ctx context.Context, code string) (*model.User, error)

	// SetReferredBy records the referrer once; a second attempt fails.
	SetReferredBy(ctx context.Context, phone, referrer string) error

	// SetReferralCode stores a code subject to the unique constraint.
	SetReferralCode(ctx context.Context, phone, code string) error

	SetLanguage(ctx context.Context, phone, language string) error
	ListReferees(ctx context.Context, referrer string) ([]model.User, error)

	// CreditBonus adds the amount to the balance and increments the referral
	// counter, returning the updated account.
	CreditBonus(ctx context.Context, phone string, amount float64) (*model.User, error)

	// Withdraw deducts the amount and accumulates it into withdrawn, guarded
	// so the balance never goes negative.
	Withdraw(ctx context.Context, phone string, amount float64) (*model.User, error)
}
