package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yourusername/banking-api/internal/domain/entity"
	"github.com/yourusername/banking-api/internal/domain/repository"
	apperrors "github.com/yourusername/banking-api/internal/pkg/errors"
)

// ChallengeVerifier checks a presented secret and consumes its challenge in
// one atomic step. It applies no domain effect itself; on success the caller
// applies the purpose-specific effect through the account directory using the
// returned subject ID.
type ChallengeVerifier struct {
	store repository.ChallengeRepository
}

func NewChallengeVerifier(store repository.ChallengeRepository) (*ChallengeVerifier, error) {
	if store == nil {
		return nil, fmt.Errorf("challenge repository is required")
	}
	return &ChallengeVerifier{store: store}, nil
}

// Verify digests the presented secret and atomically consumes the matching
// challenge. Wrong, expired, already-consumed and superseded secrets are
// indistinguishable to the caller: all yield ErrInvalidOrExpired. A second
// submission of a secret that already verified also fails, which is the
// anti-replay property.
func (s *ChallengeVerifier) Verify(ctx context.Context, presentedSecret string, purpose entity.ChallengePurpose) (uint, error) {
	if !purpose.Valid() {
		return 0, ErrUnknownPurpose
	}
	secret := strings.TrimSpace(presentedSecret)
	if secret == "" {
		return 0, fmt.Errorf("%w: empty secret", apperrors.ErrValidation)
	}

	digest := DigestSecret(secret)
	subjectID, ok, err := s.store.ConsumeIfValid(ctx, digest, purpose, time.Now())
	if err != nil {
		log.Printf("[ChallengeVerifier] consume failed purpose=%s: %v", purpose, err)
		return 0, err
	}
	if !ok {
		return 0, apperrors.ErrInvalidOrExpired
	}
	return subjectID, nil
}
