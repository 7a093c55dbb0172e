package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/codeskytz/smmbot/internal/adapter/payment"
	domainErrors "github.com/codeskytz/smmbot/internal/domain/errors"
	"github.com/codeskytz/smmbot/internal/domain/model"
	"github.com/codeskytz/smmbot/internal/domain/repository"
)

const (
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength      = 8
	codeMaxAttempts = 5
)

// ReferralUseCase owns referral accounts and balance mutation.
type ReferralUseCase struct {
	users repository.UserRepository
}

// NewReferralUseCase constructs ReferralUseCase.
func NewReferralUseCase(users repository.UserRepository) *ReferralUseCase {
	return &ReferralUseCase{users: users}
}

// Register records who referred refereePhone. The referrer may be given as a
// phone number or as a referral code. The link is set-once and self referral
// is rejected.
func (u *ReferralUseCase) Register(ctx context.Context, refereePhone, referrer string) error {
	referee := payment.FormatPhoneTZ(refereePhone)

	if phone := payment.FormatPhoneTZ(referrer); phone != "" {
		referrer = phone
	} else {
		owner, err := u.users.GetByReferralCode(ctx, referrer)
		if err != nil {
			return err
		}
		referrer = owner.Phone
	}
	if referee == referrer {
		return domainErrors.ErrSelfReferral
	}

	if _, err := u.users.GetOrCreate(ctx, referrer); err != nil {
		return err
	}
	if _, err := u.users.GetOrCreate(ctx, referee); err != nil {
		return err
	}
	return u.users.SetReferredBy(ctx, referee, referrer)
}

// Code returns the user's referral code, generating a unique one on first
// use with a bounded number of collision retries.
func (u *ReferralUseCase) Code(ctx context.Context, phone string) (string, error) {
	normalized := payment.FormatPhoneTZ(phone)
	user, err := u.users.GetOrCreate(ctx, normalized)
	if err != nil {
		return "", err
	}
	if user.ReferralCode != nil && *user.ReferralCode != "" {
		return *user.ReferralCode, nil
	}

	for attempt := 0; attempt < codeMaxAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		err = u.users.SetReferralCode(ctx, normalized, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, domainErrors.ErrAlreadyExists) {
			return "", err
		}
	}
	return "", fmt.Errorf("could not allocate a unique referral code")
}

// Referees lists users referred by the given phone.
func (u *ReferralUseCase) Referees(ctx context.Context, phone string) ([]model.User, error) {
	return u.users.ListReferees(ctx, payment.FormatPhoneTZ(phone))
}

// Balance returns the referral account for a phone, creating it lazily.
func (u *ReferralUseCase) Balance(ctx context.Context, phone string) (*model.User, error) {
	return u.users.GetOrCreate(ctx, payment.FormatPhoneTZ(phone))
}

// SetLanguage stores the user's preferred reply language, creating the
// account lazily like Balance does.
func (u *ReferralUseCase) SetLanguage(ctx context.Context, phone, language string) error {
	normalized := payment.FormatPhoneTZ(phone)
	if _, err := u.users.GetOrCreate(ctx, normalized); err != nil {
		return err
	}
	return u.users.SetLanguage(ctx, normalized, language)
}

// Withdraw debits the user's balance after validating the amount against the
// minimum threshold and available funds.
func (u *ReferralUseCase) Withdraw(ctx context.Context, phone string, amount float64) (*model.User, error) {
	if amount <= 0 {
		return nil, domainErrors.ErrInvalidAmount
	}
	normalized := payment.FormatPhoneTZ(phone)
	user, err := u.users.GetOrCreate(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if user.Balance < model.WithdrawThreshold {
		return nil, domainErrors.ErrBelowMinimumBalance
	}
	if amount > user.Balance {
		return nil, domainErrors.ErrInsufficientBalance
	}
	return u.users.Withdraw(ctx, normalized, amount)
}

// CreditBonus pays the fixed referral bonus to the referrer of buyerPhone,
// if any. It returns the updated referrer account or nil when the buyer has
// no referrer.
func (u *ReferralUseCase) CreditBonus(ctx context.Context, buyerPhone string) (*model.User, error) {
	buyer, err := u.users.GetByPhone(ctx, payment.FormatPhoneTZ(buyerPhone))
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if buyer.ReferredBy == nil || *buyer.ReferredBy == "" {
		return nil, nil
	}
	return u.users.CreditBonus(ctx, *buyer.ReferredBy, model.ReferralBonus)
}

func randomCode() (string, error) {
	code := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
