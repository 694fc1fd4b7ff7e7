package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"blackcat/internal/domains/user"
	"blackcat/pkg/cache"
	"blackcat/pkg/jwt"
)

const (
	MaxFailedAttempts = 5
	LockoutDuration   = 15 * time.Minute
	AttemptWindow     = 15 * time.Minute

	bcryptCost = 12
)

type userService struct {
	repo       user.Repository
	cache      cache.Cache
	jwtManager *jwt.Manager
	hashCost   int
}

// NewUserService wires the user service. The cache holds failed login counters and lockouts.
func NewUserService(repo user.Repository, cache cache.Cache, jwtManager *jwt.Manager) user.Service {
	return &userService{
		repo:       repo,
		cache:      cache,
		jwtManager: jwtManager,
		hashCost:   bcryptCost,
	}
}

func (s *userService) Register(ctx context.Context, req user.RegisterRequest) (*user.UserDTO, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Password != req.PasswordConfirm {
		return nil, user.ErrPasswordMismatch
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	newUser := &user.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
	}
	if err := s.repo.Create(ctx, newUser); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", newUser.ID.String()).Str("username", newUser.Username).Msg("User registered")

	dto := newUser.ToDTO()
	return &dto, nil
}

func (s *userService) Login(ctx context.Context, req user.LoginRequest) (*user.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	locked, err := s.cache.Exists(ctx, lockKey(req.Username))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read lockout state")
	}
	if locked {
		return nil, user.ErrAccountLocked
	}

	u, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			s.recordFailedLogin(ctx, req.Username)
			return nil, user.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		s.recordFailedLogin(ctx, req.Username)
		return nil, user.ErrInvalidCredentials
	}

	if err := s.cache.Delete(ctx, attemptKey(req.Username)); err != nil {
		log.Warn().Err(err).Msg("Failed to clear login attempts")
	}

	token, expiresAt, err := s.jwtManager.GenerateAccessToken(u.ID.String(), u.Username)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	return &user.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        u.ToDTO(),
	}, nil
}

// recordFailedLogin counts a failure inside AttemptWindow and locks the
// username for LockoutDuration once MaxFailedAttempts is reached.
func (s *userService) recordFailedLogin(ctx context.Context, username string) {
	key := attemptKey(username)
	attempts, err := s.cache.Increment(ctx, key)
	if err != nil {
		log.Error().Err(err).Msg("Failed to increment login attempts")
		return
	}
	if attempts == 1 {
		if err := s.cache.Expire(ctx, key, AttemptWindow); err != nil {
			log.Error().Err(err).Msg("Failed to set attempt window")
		}
	}

	if attempts < MaxFailedAttempts {
		return
	}
	if err := s.cache.Set(ctx, lockKey(username), "1", LockoutDuration); err != nil {
		log.Error().Err(err).Msg("Failed to lock account")
		return
	}
	_ = s.cache.Delete(ctx, key)

	log.Warn().
		Str("username", username).
		Dur("duration", LockoutDuration).
		Msg("Account locked")
}

func (s *userService) GetProfile(ctx context.Context, userID uuid.UUID) (*user.UserDTO, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := u.ToDTO()
	return &dto, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, req user.UpdateProfileRequest) (*user.UserDTO, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateEmail(ctx, userID, req.Email); err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

func (s *userService) ChangePassword(ctx context.Context, userID uuid.UUID, req user.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if req.NewPassword != req.NewPasswordConfirm {
		return user.ErrPasswordMismatch
	}

	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	// FindByID may be served from cache, which never holds the hash
	u, err = s.repo.FindByUsername(ctx, u.Username)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.OldPassword)); err != nil {
		return user.ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

func (s *userService) SearchWriters(ctx context.Context, prefix string, limit int) ([]user.WriterSummary, error) {
	users, err := s.repo.Search(ctx, strings.TrimSpace(prefix), limit)
	if err != nil {
		return nil, err
	}
	out := make([]user.WriterSummary, 0, len(users))
	for _, u := range users {
		out = append(out, user.WriterSummary{ID: u.ID, Username: u.Username})
	}
	return out, nil
}

func attemptKey(username string) string { return "failed_login:" + username }
func lockKey(username string) string    { return "account_locked:" + username }
