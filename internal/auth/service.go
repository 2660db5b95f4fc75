package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/recipe-app/recipe-api/internal/shared"
	"github.com/recipe-app/recipe-api/internal/users"
)

// tokenBytes is the entropy of a token key; keys are hex encoded to 40 characters.
const tokenBytes = 20

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	cache  *TokenCache
	logger *slog.Logger
	group  singleflight.Group
	newKey func() (string, error)
}

// NewService constructs a new Service. cache may be nil.
func NewService(repo Repository, cache *TokenCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, newKey: GenerateKey}
}

// GenerateKey returns a random 40 character hex token key.
func GenerateKey() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, users.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// IssueToken exchanges credentials for the user's token, creating it on first use.
func (s *Service) IssueToken(ctx context.Context, email, password string) (Token, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Token{}, err
	}
	// A fresh key can only collide with another user's key; retry once.
	for attempt := 0; ; attempt++ {
		key, err := s.newKey()
		if err != nil {
			return Token{}, err
		}
		token, err := s.repo.GetOrCreateToken(ctx, user.ID, key)
		if errors.Is(err, shared.ErrDuplicate) && attempt == 0 {
			continue
		}
		return token, err
	}
}

// Resolve returns the active user owning the token key.
func (s *Service) Resolve(ctx context.Context, key string) (*User, error) {
	if key == "" {
		return nil, shared.ErrUnauthorized
	}
	userID, err := s.userIDForKey(ctx, key)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.evict(ctx, key)
			return nil, shared.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrUnauthorized
	}
	return user, nil
}

// Revoke deletes the user's token so the next login mints a new one.
func (s *Service) Revoke(ctx context.Context, userID int64) error {
	key, err := s.repo.DeleteToken(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.cache.Revoke(ctx, key); err != nil {
		s.logger.Warn("token cache revoke", slog.Any("error", err))
	}
	return nil
}

func (s *Service) userIDForKey(ctx context.Context, key string) (int64, error) {
	if id, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("token cache get", slog.Any("error", err))
	} else if ok {
		return id, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		token, err := s.repo.FindToken(ctx, key)
		if err != nil {
			return int64(0), err
		}
		if err := s.cache.Set(ctx, key, token.UserID); err != nil {
			s.logger.Warn("token cache set", slog.Any("error", err))
		}
		return token.UserID, nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, shared.ErrUnauthorized
		}
		return 0, err
	}
	return v.(int64), nil
}

func (s *Service) evict(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("token cache delete", slog.Any("error", err))
	}
}
