package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/recipe-app/recipe-api/internal/shared"
)

// ErrEmailRequired is returned when a user is created without an email.
var ErrEmailRequired = shared.NewValidationError("email", "Users must have an email address.")

// ErrNameBlank is returned when a profile name is empty after trimming.
var ErrNameBlank = shared.NewValidationError("name", "This field may not be blank.")

// WelcomeNotifier is told about newly registered users.
type WelcomeNotifier interface {
	NotifyWelcome(ctx context.Context, userID int64, email, name string) error
}

// Service handles user business logic.
type Service struct {
	repo     Repository
	notifier WelcomeNotifier
	logger   *slog.Logger
	cost     int
}

// Option customises a Service.
type Option func(*Service)

// WithNotifier registers a welcome notifier used by Register.
func WithNotifier(n WelcomeNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the logger used for best-effort side effects.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService builds Service instance.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, logger: slog.Default(), cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// CreateUser validates, normalizes and persists a regular user.
func (s *Service) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	email := NormalizeEmail(params.Email)
	if email == "" {
		return User{}, ErrEmailRequired
	}
	if params.Password == "" {
		return User{}, shared.NewValidationError("password", "This field may not be blank.")
	}
	hash, err := s.hash(params.Password)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.Create(ctx, User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(params.Name),
		IsActive:     true,
		IsStaff:      params.IsStaff,
		IsSuperuser:  params.IsSuperuser,
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return User{}, shared.NewValidationError("email", "user with this email already exists.")
		}
		return User{}, err
	}
	return user, nil
}

// CreateSuperuser creates a user with staff and superuser flags set.
func (s *Service) CreateSuperuser(ctx context.Context, email, password, name string) (User, error) {
	return s.CreateUser(ctx, CreateUserParams{
		Email:       email,
		Password:    password,
		Name:        name,
		IsStaff:     true,
		IsSuperuser: true,
	})
}

// Register creates a user through the public API and schedules the welcome notice.
func (s *Service) Register(ctx context.Context, params CreateUserParams) (User, error) {
	params.IsStaff = false
	params.IsSuperuser = false
	if strings.TrimSpace(params.Name) == "" {
		return User{}, ErrNameBlank
	}
	user, err := s.CreateUser(ctx, params)
	if err != nil {
		return User{}, err
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyWelcome(ctx, user.ID, user.Email, user.Name); err != nil {
			s.logger.Warn("enqueue welcome", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
	}
	return user, nil
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, shared.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// UpdateProfile applies the supplied changes, rehashing the password when present.
func (s *Service) UpdateProfile(ctx context.Context, id int64, params UpdateProfileParams) (User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if params.Email != nil {
		email := NormalizeEmail(*params.Email)
		if email == "" {
			return User{}, ErrEmailRequired
		}
		user.Email = email
	}
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return User{}, ErrNameBlank
		}
		user.Name = name
	}
	if params.Password != nil {
		hash, err := s.hash(*params.Password)
		if err != nil {
			return User{}, err
		}
		user.PasswordHash = hash
	}
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return User{}, shared.NewValidationError("email", "user with this email already exists.")
		}
		return User{}, err
	}
	return updated, nil
}

// SetPassword replaces the password of the user identified by email.
func (s *Service) SetPassword(ctx context.Context, email, password string) error {
	if password == "" {
		return shared.NewValidationError("password", "This field may not be blank.")
	}
	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	_, err = s.UpdateProfile(ctx, user.ID, UpdateProfileParams{Password: &password})
	return err
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(u User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (s *Service) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", shared.NewValidationError("password", "Ensure this field has no more than 72 characters.")
		}
		return "", err
	}
	return string(hashed), nil
}
