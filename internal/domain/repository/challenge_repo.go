package repository

import (
	"context"
	"time"

	"github.com/yourusername/banking-api/internal/domain/entity"
)

// ChallengeRepository persists single-use challenge records keyed by secret
// digest.
type ChallengeRepository interface {
	// Create stores a new challenge and, in the same operation, marks any
	// other live challenge for the same (subject, purpose) as superseded.
	// At most one live row per pair survives.
	Create(ctx context.Context, challenge *entity.Challenge) error

	// ConsumeIfValid atomically looks up the row by digest+purpose, checks
	// that it is unconsumed, unsuperseded and unexpired at the given instant,
	// and marks it consumed. Returns the subject ID and ok=true only when
	// all checks held; concurrent attempts with the same digest see at most
	// one ok=true.
	ConsumeIfValid(ctx context.Context, digest string, purpose entity.ChallengePurpose, now time.Time) (uint, bool, error)

	// Invalidate marks a challenge superseded by digest. Used when delivery
	// fails after persistence, so a secret that was never sent cannot stay
	// live.
	Invalidate(ctx context.Context, digest string) error

	// Purge deletes rows whose expiry has passed. Housekeeping; safe to run
	// concurrently with the operations above.
	Purge(ctx context.Context, now time.Time) (int64, error)
}
