package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	"github.com/careloop/postop-followup/backend/internal/domain/repositories"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/careloop/postop-followup/backend/pkg/errors"
)

// UserAdapter implements login-account persistence in Postgres.
type UserAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewUserAdapter creates a new user adapter.
func NewUserAdapter(client *postgres.Client) repositories.UserRepository {
	return &UserAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a login account.
func (a *UserAdapter) Create(ctx context.Context, user *entities.User) error {
	if user == nil {
		return apperrors.NewInternalError("user is nil", fmt.Errorf("user is nil"))
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	record := goqu.Record{
		"id":            user.ID,
		"username":      user.Username,
		"password_hash": user.PasswordHash,
		"role":          string(user.Role),
		"patient_id":    user.PatientID,
		"doctor_id":     user.DoctorID,
		"created_at":    user.CreatedAt,
	}

	query, args, err := a.db.Insert("users").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build user insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create user", err)
	}

	return nil
}

// GetByUsername fetches a login account by username.
func (a *UserAdapter) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	query, args, err := a.db.From("users").
		Select("id", "username", "password_hash", "role", "patient_id", "doctor_id", "created_at").
		Where(goqu.Ex{"username": username}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build user query", err)
	}

	var user entities.User
	var role string
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &role,
		&user.PatientID, &user.DoctorID, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("user not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get user", err)
	}
	user.Role = entities.Role(role)
	return &user, nil
}
