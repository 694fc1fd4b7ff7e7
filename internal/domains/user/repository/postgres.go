package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"blackcat/internal/domains/user"
	"blackcat/pkg/cache"
	"blackcat/pkg/logger"
)

const (
	userCacheTTL       = 10 * time.Minute
	uniqueViolationErr = "23505"
)

type postgresRepository struct {
	pool  *pgxpool.Pool
	cache cache.Cache
}

// NewPostgresRepository returns a user.Repository backed by PostgreSQL.
// FindByID is cache-aside through the given cache.
func NewPostgresRepository(pool *pgxpool.Pool, cache cache.Cache) user.Repository {
	return &postgresRepository{
		pool:  pool,
		cache: cache,
	}
}

func userCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id.String())
}

const userColumns = `id, username, email, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *postgresRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, u.Username, u.Email, u.PasswordHash).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationErr {
			return user.ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *postgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	cacheKey := userCacheKey(id)

	var cached user.User
	if found, err := r.cache.Get(ctx, cacheKey, &cached); err == nil && found {
		return &cached, nil
	} else if err != nil {
		logger.Warn("user cache read failed", map[string]interface{}{"key": cacheKey, "error": err.Error()})
	}

	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	// PasswordHash is json:"-", cached copies carry no credentials
	if err := r.cache.Set(ctx, cacheKey, u, userCacheTTL); err != nil {
		logger.Warn("user cache write failed", map[string]interface{}{"key": cacheKey, "error": err.Error()})
	}
	return u, nil
}

func (r *postgresRepository) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *postgresRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY username`, ids)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return collectUsers(rows)
}

func (r *postgresRepository) Search(ctx context.Context, prefix string, limit int) ([]user.User, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE username ILIKE $1 || '%' ORDER BY username LIMIT $2`,
		prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]user.User, error) {
	defer rows.Close()
	users := make([]user.User, 0)
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *postgresRepository) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET email = $2, updated_at = NOW() WHERE id = $1`, id, email)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *postgresRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *postgresRepository) invalidate(ctx context.Context, id uuid.UUID) {
	if err := r.cache.Delete(ctx, userCacheKey(id)); err != nil {
		logger.Warn("user cache invalidation failed", map[string]interface{}{"user_id": id.String(), "error": err.Error()})
	}
}
