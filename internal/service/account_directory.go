package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yourusername/banking-api/internal/domain/entity"
	"github.com/yourusername/banking-api/internal/domain/repository"
	apperrors "github.com/yourusername/banking-api/internal/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// AccountDirectory is the user-directory collaborator: it resolves an
// identifier to an account and applies the purpose-specific effect after a
// successful verification. The challenge subsystem itself never mutates
// accounts directly.
type AccountDirectory struct {
	userRepo repository.UserRepository
}

func NewAccountDirectory(userRepo repository.UserRepository) (*AccountDirectory, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	return &AccountDirectory{userRepo: userRepo}, nil
}

// FindByIdentifier resolves an email to an account. apperrors.ErrNotFound
// means the identifier did not resolve; any other failure is wrapped as a
// directory error.
func (d *AccountDirectory) FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	email := strings.ToLower(strings.TrimSpace(identifier))
	user, err := d.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDirectory, err)
	}
	return user, nil
}

// ApplyEffect performs the state change a verified challenge authorizes:
// password_reset replaces the password hash, otp_verification stamps the
// investment unlock.
func (d *AccountDirectory) ApplyEffect(ctx context.Context, subjectID uint, purpose entity.ChallengePurpose, payload string) error {
	switch purpose {
	case entity.PurposePasswordReset:
		hash, err := bcrypt.GenerateFromPassword([]byte(payload), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash new password: %w", err)
		}
		if err := d.userRepo.UpdatePasswordHash(ctx, subjectID, string(hash)); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrDirectory, err)
		}
		return nil
	case entity.PurposeOtpVerification:
		user, err := d.userRepo.GetByID(ctx, subjectID)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrDirectory, err)
		}
		// Idempotent: a second verified unlock keeps the original timestamp.
		if user.InvestmentEnabled() {
			return nil
		}
		now := time.Now()
		updates := map[string]interface{}{
			"investment_enabled_at": &now,
		}
		if err := d.userRepo.UpdateProfile(ctx, subjectID, updates); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrDirectory, err)
		}
		return nil
	default:
		return ErrEffectNotAllowed
	}
}
