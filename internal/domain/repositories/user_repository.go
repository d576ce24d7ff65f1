package repositories

import (
	"context"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
)

// UserRepository defines the interface for login accounts.
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
}
