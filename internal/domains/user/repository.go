package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the data access contract for users
type Repository interface {
	// Create inserts the user and fills ID and timestamps.
	// Returns ErrUsernameTaken on a duplicate username.
	Create(ctx context.Context, user *User) error

	// Returns ErrUserNotFound when missing
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)

	// FindByIDs returns the users that exist; missing ids are skipped
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error)

	// Search lists users whose username starts with prefix, ordered by username
	Search(ctx context.Context, prefix string, limit int) ([]User, error)

	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}
