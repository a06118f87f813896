package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/pquerna/otp"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/internal/auth/mail"
	"github.com/memberhub/memberhub/internal/auth/store"
	"github.com/memberhub/memberhub/pkg/cryptox"
	"github.com/memberhub/memberhub/pkg/idx"
	"github.com/memberhub/memberhub/pkg/slogx"
)

// DefaultCodeTTL is how long a reset code stays redeemable.
const DefaultCodeTTL = 6 * time.Minute

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// PasswordResetService runs the forgot/reset password flow. Each email has
// at most one code row at a time; a new request replaces the old one.
type PasswordResetService struct {
	Store   store.Store
	Hasher  cryptox.Hasher
	Mailer  mail.Mailer // nil skips delivery
	CodeTTL time.Duration
	Now     func() time.Time
}

func (s *PasswordResetService) ttl() time.Duration {
	if s.CodeTTL <= 0 {
		return DefaultCodeTTL
	}
	return s.CodeTTL
}

// ForgotPassword replaces any outstanding code for email with a fresh one,
// mails it and returns it. Unknown emails fail with ErrUserNotFound.
func (s *PasswordResetService) ForgotPassword(ctx context.Context, email string) (string, error) {
	log := slogx.FromContext(ctx)

	acct, err := s.Store.Accounts().GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup account: %w", err)
	}

	code, err := cryptox.GenerateNumericCode(otp.DigitsSix)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	now := nowFunc(s.Now)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.OneTimeCodes().DeleteOneTimeCodesByEmail(ctx, email); err != nil {
			return fmt.Errorf("delete previous codes: %w", err)
		}
		return tx.OneTimeCodes().CreateOneTimeCode(ctx, domain.OneTimeCode{
			ID:        idx.NewAt(now).String(),
			Email:     email,
			Code:      code,
			ExpiresAt: now.Add(s.ttl()),
			CreatedAt: now,
		})
	})
	if err != nil {
		return "", err
	}
	log.Info("reset code issued", "account_id", acct.ID)

	if s.Mailer != nil {
		msg, err := mail.ResetCodeMessage(acct.Email, acct.FullName, code, s.ttl())
		if err != nil {
			return "", fmt.Errorf("render reset mail: %w", err)
		}
		if err := s.Mailer.Send(ctx, msg); err != nil {
			// The code stays valid; asking again supersedes it.
			log.Error("reset mail not delivered", "account_id", acct.ID, "err", err)
			return "", fmt.Errorf("deliver reset code: %w", err)
		}
	}
	return code, nil
}

// ValidatePassword applies the password policy shared by resets and account
// provisioning.
func ValidatePassword(password string) error {
	if err := validation.Validate(password,
		validation.Required,
		validation.Length(minPasswordLength, maxPasswordLength),
	); err != nil {
		return ValidationError(fmt.Errorf("password: %w", err))
	}
	return nil
}

// ResetPassword redeems code for email and replaces the account's password.
// Marking the code used and storing the new hash commit together or not at
// all. A code that is missing, wrong or expired fails with ErrInvalidOtp; a
// spent one with ErrOtpAlreadyUsed.
func (s *PasswordResetService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	log := slogx.FromContext(ctx)
	now := nowFunc(s.Now)

	var accountID string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		otpRow, err := tx.OneTimeCodes().GetOneTimeCodeByEmail(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOtp
		}
		if err != nil {
			return fmt.Errorf("lookup code: %w", err)
		}
		if subtle.ConstantTimeCompare([]byte(otpRow.Code), []byte(code)) != 1 {
			return ErrInvalidOtp
		}
		if otpRow.Used() {
			return ErrOtpAlreadyUsed
		}
		if otpRow.Expired(now) {
			return ErrInvalidOtp
		}

		locked, err := tx.OneTimeCodes().LockOneTimeCode(ctx, otpRow.ID)
		if errors.Is(err, store.ErrNotFound) {
			// Superseded by a newer forgot-password request.
			return ErrInvalidOtp
		}
		if err != nil {
			return fmt.Errorf("lock code: %w", err)
		}
		if locked.Used() {
			return ErrOtpAlreadyUsed
		}

		marked, err := tx.OneTimeCodes().MarkOneTimeCodeUsed(ctx, locked.ID, now)
		if err != nil {
			return fmt.Errorf("mark code used: %w", err)
		}
		if !marked {
			return ErrOtpAlreadyUsed
		}

		acct, err := tx.Accounts().GetAccountByEmail(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOtp
		}
		if err != nil {
			return fmt.Errorf("lookup account: %w", err)
		}

		hash, err := s.Hasher.HashPassword(newPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		if err := tx.Accounts().UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
			return fmt.Errorf("store password: %w", err)
		}
		accountID = acct.ID
		return nil
	})
	if err != nil {
		var appErr *Error
		if errors.As(err, &appErr) {
			log.Info("password reset rejected", "reason", appErr.Code)
		}
		return err
	}

	log.Info("password reset", "account_id", accountID)
	return nil
}
