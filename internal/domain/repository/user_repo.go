package repository

import (
	"context"

	"github.com/yourusername/banking-api/internal/domain/entity"
)

// UserRepository is the slice of the user directory the challenge subsystem
// depends on.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	UpdatePasswordHash(ctx context.Context, userID uint, passwordHash string) error
	UpdateProfile(ctx context.Context, userID uint, updates map[string]interface{}) error
}
