package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/banking-api/internal/domain/entity"
	apperrors "github.com/yourusername/banking-api/internal/pkg/errors"
	"gorm.io/gorm"
)

// ChallengeRepo implements repository.ChallengeRepository with PostgreSQL and
// GORM. A partial unique index on (subject_id, purpose) over live rows backs
// the one-live-challenge invariant; racing issuances for the same pair
// serialize on it.
type ChallengeRepo struct {
	db *gorm.DB
}

func NewChallengeRepo(db *gorm.DB) (*ChallengeRepo, error) {
	if db == nil {
		return nil, fmt.Errorf("GORM DB instance is required for ChallengeRepo")
	}
	return &ChallengeRepo{db: db}, nil
}

// Create supersedes any live challenge for the same (subject, purpose) and
// inserts the new row in one transaction.
func (r *ChallengeRepo) Create(ctx context.Context, challenge *entity.Challenge) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&entity.Challenge{}).
			Where("subject_id = ? AND purpose = ? AND consumed_at IS NULL AND superseded_at IS NULL",
				challenge.SubjectID, challenge.Purpose).
			Update("superseded_at", now).Error; err != nil {
			return err
		}
		return tx.Create(challenge).Error
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create challenge: %v", apperrors.ErrStorage, err)
	}
	return nil
}

// ConsumeIfValid is a single conditional UPDATE ... RETURNING, so the
// validity check and the consumption are indivisible. Two concurrent
// verifications of the same digest cannot both observe a live row.
func (r *ChallengeRepo) ConsumeIfValid(ctx context.Context, digest string, purpose entity.ChallengePurpose, now time.Time) (uint, bool, error) {
	var subjectID uint
	res := r.db.WithContext(ctx).Raw(
		`UPDATE challenges
		    SET consumed_at = ?
		  WHERE secret_digest = ?
		    AND purpose = ?
		    AND consumed_at IS NULL
		    AND superseded_at IS NULL
		    AND expires_at > ?
		 RETURNING subject_id`,
		now, digest, purpose, now,
	).Scan(&subjectID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: failed to consume challenge: %v", apperrors.ErrStorage, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}
	return subjectID, true, nil
}

// Invalidate marks a challenge superseded by digest, regardless of state.
func (r *ChallengeRepo) Invalidate(ctx context.Context, digest string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&entity.Challenge{}).
		Where("secret_digest = ? AND superseded_at IS NULL", digest).
		Update("superseded_at", now).Error
	if err != nil {
		return fmt.Errorf("%w: failed to invalidate challenge: %v", apperrors.ErrStorage, err)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (r *ChallengeRepo) Purge(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&entity.Challenge{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: failed to purge challenges: %v", apperrors.ErrStorage, res.Error)
	}
	return res.RowsAffected, nil
}
