// Package identity provides user accounts, authentication and sessions.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/bissquit/news-portal/internal/pkg/ctxlog"
	"github.com/bissquit/news-portal/internal/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Account field limits. PasswordMaxBytes is the longest input bcrypt accepts;
// the others follow the column sizes.
const (
	PasswordMinLength = 6
	PasswordMaxBytes  = 72
	NameMaxLength     = 255
	EmailMaxLength    = 255
)

// timingPassword is hashed once to give unknown emails the same compare cost
// as wrong passwords.
const timingPassword = "news-portal-timing-equalizer"

// Authenticator issues and validates session tokens.
type Authenticator interface {
	GenerateToken(ctx context.Context, user *domain.User) (token string, expiresAt time.Time, err error)
	ValidateToken(ctx context.Context, token string) (*domain.User, error)
}

// Session is the result of a successful login.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Service implements user management and authentication.
type Service struct {
	repo     Repository
	hasher   PasswordHasher
	auth     Authenticator
	validate *validator.Validate

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new identity service.
func NewService(repo Repository, hasher PasswordHasher, auth Authenticator) *Service {
	return &Service{
		repo:     repo,
		hasher:   hasher,
		auth:     auth,
		validate: validator.New(),
	}
}

// Create validates user, hashes its password and stores it. An empty role
// defaults to reader.
func (s *Service) Create(ctx context.Context, user *domain.User) error {
	normalizeUser(user)
	if user.Role == "" {
		user.Role = domain.RoleReader
	}

	if err := s.validateUser(user); err != nil {
		return err
	}
	if err := validatePassword(user.Password); err != nil {
		return err
	}

	exists, err := s.repo.EmailExists(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if exists {
		return ErrEmailExists
	}

	hash, err := s.hasher.Hash(user.Password)
	if err != nil {
		return err
	}
	user.Password = hash

	if err := s.repo.Save(ctx, user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	ctxlog.FromContext(ctx).Info("user created", "user_id", user.ID, "role", user.Role)
	return nil
}

// Update re-validates user and overwrites the stored account. An empty
// password, or one equal to the stored hash, keeps the stored hash; any other
// value is treated as a new plaintext password. An empty role keeps the
// stored role.
func (s *Service) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	existing, ok, err := s.GetByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	user.ID = existing.ID

	normalizeUser(user)
	if user.Role == "" {
		user.Role = existing.Role
	}
	if err := s.validateUser(user); err != nil {
		return nil, err
	}

	owner, found, err := s.repo.FindByEmail(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if found && owner.ID != user.ID {
		return nil, ErrEmailExists
	}

	if user.Password == "" || user.Password == existing.Password {
		user.Password = existing.Password
	} else {
		if err := validatePassword(user.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(user.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hash
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	ctxlog.FromContext(ctx).Info("user updated", "user_id", updated.ID)
	return updated, nil
}

// Authenticate checks credentials and returns the matching user. Unknown
// email and wrong password both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if domain.IsBlank(email) {
		return nil, domain.NewValidationError("email", "email is required")
	}
	if domain.IsBlank(password) {
		return nil, domain.NewValidationError("password", "password is required")
	}
	email = normalizeEmail(email)

	user, err := s.lookupCredentials(ctx, email, password)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return nil, err
	}
	if user == nil {
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		ctxlog.FromContext(ctx).Info("authentication failed")
		return nil, ErrInvalidCredentials
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	return user, nil
}

func (s *Service) lookupCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	if s.hasher.Deterministic() {
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return nil, err
		}
		user, ok, err := s.repo.Authenticate(ctx, email, hash)
		if err != nil {
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		if !ok {
			return nil, nil
		}
		return user, nil
	}

	user, ok, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if !ok {
		s.hasher.Compare(s.timingHash(), password)
		return nil, nil
	}
	if !s.hasher.Compare(user.Password, password) {
		return nil, nil
	}
	return user, nil
}

// timingHash returns a hash of timingPassword produced by the configured hasher.
func (s *Service) timingHash() string {
	s.dummyOnce.Do(func() {
		if hash, err := s.hasher.Hash(timingPassword); err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

// Login authenticates the credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.auth.GenerateToken(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	ctxlog.FromContext(ctx).Info("user logged in", "user_id", user.ID)
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// ValidateToken resolves a session token to its user.
func (s *Service) ValidateToken(ctx context.Context, token string) (*domain.User, error) {
	return s.auth.ValidateToken(ctx, token)
}

// Delete removes the user with id.
func (s *Service) Delete(ctx context.Context, id string) error {
	user, ok, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	id = user.ID

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrUserHasArticles) {
			return err
		}
		return fmt.Errorf("delete user: %w", err)
	}

	ctxlog.FromContext(ctx).Info("user deleted", "user_id", id)
	return nil
}

// GetByID returns the user with id. Malformed ids are reported as absent.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.User, bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false, nil
	}

	user, ok, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("get user: %w", err)
	}
	return user, ok, nil
}

// List returns all users ordered by name.
func (s *Service) List(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repo.ListOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Count returns the number of accounts.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// EmailExists reports whether an account uses email.
func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	exists, err := s.repo.EmailExists(ctx, normalizeEmail(email))
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// EnsureAdmin creates an administrator with the given credentials unless an
// account with email already exists. It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	exists, err := s.EmailExists(ctx, email)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	admin := &domain.User{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	}
	if err := s.Create(ctx, admin); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return false, nil
		}
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}

// validateUser checks name, email and role and returns the first unmet rule.
func (s *Service) validateUser(user *domain.User) error {
	if domain.IsBlank(user.Name) {
		return domain.NewValidationError("name", "name is required")
	}
	if domain.Length(user.Name) > NameMaxLength {
		return domain.NewValidationError("name",
			fmt.Sprintf("name must have at most %d characters", NameMaxLength))
	}
	if user.Email == "" {
		return domain.NewValidationError("email", "email is required")
	}
	if domain.Length(user.Email) > EmailMaxLength {
		return domain.NewValidationError("email",
			fmt.Sprintf("email must have at most %d characters", EmailMaxLength))
	}
	if err := s.validate.Var(user.Email, "email"); err != nil {
		return domain.NewValidationError("email", "email is not a valid address")
	}
	if !user.Role.IsValid() {
		return domain.NewValidationError("role", fmt.Sprintf("role must be %s or %s", domain.RoleAdmin, domain.RoleReader))
	}
	return nil
}

func validatePassword(password string) error {
	if domain.IsBlank(password) {
		return domain.NewValidationError("password", "password is required")
	}
	if domain.Length(password) < PasswordMinLength {
		return domain.NewValidationError("password",
			fmt.Sprintf("password must have at least %d characters", PasswordMinLength))
	}
	if len(password) > PasswordMaxBytes {
		return domain.NewValidationError("password",
			fmt.Sprintf("password must not exceed %d bytes", PasswordMaxBytes))
	}
	return nil
}

func normalizeUser(user *domain.User) {
	user.Name = domain.NormalizeText(strings.TrimSpace(user.Name))
	user.Email = normalizeEmail(user.Email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
