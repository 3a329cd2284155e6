package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/banking-api/internal/domain/entity"
	"github.com/yourusername/banking-api/internal/domain/repository"
	apperrors "github.com/yourusername/banking-api/internal/pkg/errors"
)

// PurposeConfig holds the secret shape and windows for one challenge purpose.
type PurposeConfig struct {
	TTL            time.Duration
	ResendWindow   time.Duration
	ResendLimit    int
	UseNumericCode bool
}

// DefaultPurposeConfigs returns the production windows: a 30 minute reset
// token and a 5 minute 6-digit code, each with a per-subject resend cap.
func DefaultPurposeConfigs() map[entity.ChallengePurpose]PurposeConfig {
	return map[entity.ChallengePurpose]PurposeConfig{
		entity.PurposePasswordReset: {
			TTL:            30 * time.Minute,
			ResendWindow:   time.Minute,
			ResendLimit:    1,
			UseNumericCode: false,
		},
		entity.PurposeOtpVerification: {
			TTL:            5 * time.Minute,
			ResendWindow:   time.Minute,
			ResendLimit:    1,
			UseNumericCode: true,
		},
	}
}

// issuanceTimeout bounds the background throttle/store/delivery pipeline of a
// single issuance.
const issuanceTimeout = 30 * time.Second

// ChallengeIssuer creates a challenge for a subject, persists its digest and
// hands the plaintext to the notifier. The outward contract never reveals
// whether the identifier resolved: unknown identifiers, throttled subjects,
// storage and delivery failures all produce the same nil result, so callers
// can always answer "accepted".
//
// The synchronous part of every request is the same for both outcomes:
// resolve the identifier, then hand the rest to a background worker. Response
// timing therefore cannot reveal whether the account exists either. The
// throttle check, the store write and the notifier send all run off the
// request path under their own timeout.
type ChallengeIssuer struct {
	directory *AccountDirectory
	store     repository.ChallengeRepository
	throttle  repository.ThrottleRepository
	generator *SecretGenerator
	email     EmailService
	purposes  map[entity.ChallengePurpose]PurposeConfig

	inflight sync.WaitGroup
}

func NewChallengeIssuer(
	directory *AccountDirectory,
	store repository.ChallengeRepository,
	throttle repository.ThrottleRepository,
	generator *SecretGenerator,
	email EmailService,
	purposes map[entity.ChallengePurpose]PurposeConfig,
) (*ChallengeIssuer, error) {
	if directory == nil {
		return nil, fmt.Errorf("account directory is required")
	}
	if store == nil {
		return nil, fmt.Errorf("challenge repository is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("secret generator is required")
	}
	if email == nil {
		return nil, fmt.Errorf("email service is required")
	}
	if len(purposes) == 0 {
		purposes = DefaultPurposeConfigs()
	}
	return &ChallengeIssuer{
		directory: directory,
		store:     store,
		throttle:  throttle,
		generator: generator,
		email:     email,
		purposes:  purposes,
	}, nil
}

// RequestChallenge issues a challenge for the account behind identifier. It
// returns a non-nil error only for malformed purposes; every other outcome,
// including "no such account", is reported as success to preserve the
// anti-enumeration contract. Both outcomes return after identical work: the
// directory lookup plus one goroutine spawn.
func (s *ChallengeIssuer) RequestChallenge(ctx context.Context, identifier string, purpose entity.ChallengePurpose) error {
	cfg, ok := s.purposes[purpose]
	if !ok {
		return ErrUnknownPurpose
	}

	user, err := s.directory.FindByIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[ChallengeIssuer] directory lookup failed purpose=%s: %v", purpose, err)
		}
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			// Same-shape synthetic work as a real issuance would start with.
			s.generateSecret(cfg)
		}()
		return nil
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		// Detached from the request context: an abandoned request must not
		// cancel an issuance that is already underway.
		opCtx, cancel := context.WithTimeout(context.Background(), issuanceTimeout)
		defer cancel()
		s.issue(opCtx, user, purpose, cfg)
	}()
	return nil
}

// issue runs the throttle check, persistence and delivery for a resolved
// subject. Failures are logged and swallowed; the external response was
// already sent.
func (s *ChallengeIssuer) issue(ctx context.Context, user *entity.User, purpose entity.ChallengePurpose, cfg PurposeConfig) {
	if err := s.allowIssuance(ctx, user.ID, purpose, cfg); err != nil {
		log.Printf("[ChallengeIssuer] issuance suppressed subject=%d purpose=%s: %v", user.ID, purpose, err)
		return
	}

	plaintext, digest, err := s.generateSecret(cfg)
	if err != nil {
		log.Printf("[ChallengeIssuer] secret generation failed purpose=%s: %v", purpose, err)
		return
	}

	now := time.Now()
	challenge := &entity.Challenge{
		SubjectID:    user.ID,
		Purpose:      purpose,
		SecretDigest: digest,
		IssuedAt:     now,
		ExpiresAt:    now.Add(cfg.TTL),
	}
	if err := s.store.Create(ctx, challenge); err != nil {
		log.Printf("[ChallengeIssuer] failed to store challenge subject=%d purpose=%s: %v", user.ID, purpose, err)
		return
	}

	if err := s.deliver(ctx, user.Email, plaintext, purpose, cfg); err != nil {
		// The secret was never sent; a live row for it would be a credential
		// nobody holds. Invalidate and treat the issuance as failed.
		log.Printf("[ChallengeIssuer] delivery failed subject=%d purpose=%s: %v", user.ID, purpose, err)
		if invErr := s.store.Invalidate(ctx, digest); invErr != nil {
			log.Printf("[ChallengeIssuer] failed to invalidate undelivered challenge subject=%d: %v", user.ID, invErr)
		}
		return
	}

	log.Printf("[ChallengeIssuer] challenge issued subject=%d purpose=%s expires_at=%s", user.ID, purpose, challenge.ExpiresAt.Format(time.RFC3339))
}

func (s *ChallengeIssuer) generateSecret(cfg PurposeConfig) (plaintext, digest string, err error) {
	if cfg.UseNumericCode {
		return s.generator.GenerateOtp()
	}
	return s.generator.GenerateToken()
}

// allowIssuance consults the server-side resend throttle and returns
// ErrThrottled when the subject is over its window. Redis errors fail-open: a
// broken throttle must not block password recovery.
func (s *ChallengeIssuer) allowIssuance(ctx context.Context, subjectID uint, purpose entity.ChallengePurpose, cfg PurposeConfig) error {
	if s.throttle == nil || cfg.ResendLimit <= 0 {
		return nil
	}
	key := fmt.Sprintf("chal:resend:%s:%d", purpose, subjectID)
	allowed, err := s.throttle.Allow(ctx, key, cfg.ResendLimit, cfg.ResendWindow)
	if err != nil {
		log.Printf("[ChallengeIssuer] throttle check failed for key %s: %v. Allowing request (fail-open).", key, err)
		return nil
	}
	if !allowed {
		return apperrors.ErrThrottled
	}
	return nil
}

func (s *ChallengeIssuer) deliver(ctx context.Context, email, plaintext string, purpose entity.ChallengePurpose, cfg PurposeConfig) error {
	idempotencyKey := fmt.Sprintf("challenge:%s:%s", purpose, uuid.NewString())
	if cfg.UseNumericCode {
		return s.email.SendOtp(ctx, email, plaintext, idempotencyKey)
	}
	return s.email.SendResetLink(ctx, email, plaintext, idempotencyKey)
}
