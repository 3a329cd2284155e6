package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/banking-api/internal/domain/entity"
	apperrors "github.com/yourusername/banking-api/internal/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

func TestFindByIdentifier_NormalizesEmail(t *testing.T) {
	userRepo := new(MockUserRepository)
	userRepo.On("GetByEmail", mock.Anything, testUserEmail).Return(testUser(), nil)

	directory, err := NewAccountDirectory(userRepo)
	require.NoError(t, err)

	user, err := directory.FindByIdentifier(context.Background(), "  U1@Bank.Test ")
	require.NoError(t, err)
	assert.Equal(t, testUserID, user.ID)
}

func TestFindByIdentifier_NotFound(t *testing.T) {
	userRepo := new(MockUserRepository)
	userRepo.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNotFound)

	directory, err := NewAccountDirectory(userRepo)
	require.NoError(t, err)

	_, err = directory.FindByIdentifier(context.Background(), "nobody@bank.test")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestApplyEffect_PasswordReset(t *testing.T) {
	var storedHash string
	userRepo := new(MockUserRepository)
	userRepo.On("UpdatePasswordHash", mock.Anything, testUserID, mock.Anything).Run(func(args mock.Arguments) {
		storedHash = args.Get(2).(string)
	}).Return(nil)

	directory, err := NewAccountDirectory(userRepo)
	require.NoError(t, err)

	err = directory.ApplyEffect(context.Background(), testUserID, entity.PurposePasswordReset, "new-password-1")
	require.NoError(t, err)

	// The stored value is a bcrypt hash of the payload, never the plaintext.
	require.NotEqual(t, "new-password-1", storedHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedHash), []byte("new-password-1")))
}

func TestApplyEffect_OtpVerification(t *testing.T) {
	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", mock.Anything, testUserID).Return(testUser(), nil)
	userRepo.On("UpdateProfile", mock.Anything, testUserID, mock.MatchedBy(func(updates map[string]interface{}) bool {
		_, ok := updates["investment_enabled_at"]
		return ok
	})).Return(nil)

	directory, err := NewAccountDirectory(userRepo)
	require.NoError(t, err)

	err = directory.ApplyEffect(context.Background(), testUserID, entity.PurposeOtpVerification, "")
	assert.NoError(t, err)
	userRepo.AssertExpectations(t)
}

func TestApplyEffect_OtpVerificationAlreadyEnabled(t *testing.T) {
	enabledAt := time.Now().Add(-time.Hour)
	user := testUser()
	user.InvestmentEnabledAt = &enabledAt

	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", mock.Anything, testUserID).Return(user, nil)

	directory, err := NewAccountDirectory(userRepo)
	require.NoError(t, err)

	// A repeat unlock is a no-op; the original timestamp is kept.
	err = directory.ApplyEffect(context.Background(), testUserID, entity.PurposeOtpVerification, "")
	assert.NoError(t, err)
	userRepo.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyEffect_UnknownPurpose(t *testing.T) {
	directory, err := NewAccountDirectory(new(MockUserRepository))
	require.NoError(t, err)

	err = directory.ApplyEffect(context.Background(), testUserID, entity.ChallengePurpose("signup"), "")
	assert.ErrorIs(t, err, ErrEffectNotAllowed)
}
