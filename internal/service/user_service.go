package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"parkwise/internal/auth"
	"parkwise/internal/database"
	"parkwise/internal/domain"
	"parkwise/internal/models"

	"github.com/rs/zerolog"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	GenerateToken(p auth.Principal) (string, time.Time, error)
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// UserInput creates an account.
type UserInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UserUpdate changes an account; nil fields are kept.
type UserUpdate struct {
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
}

type UserService struct {
	repo   domain.UserRepository
	tokens TokenIssuer
	logger *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, tokens TokenIssuer, logger *zerolog.Logger) *UserService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &UserService{repo: repo, tokens: tokens, logger: logger}
}

// Login checks credentials and issues a token. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", database.ErrInvalidInput)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid credentials", auth.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		s.logger.Warn().Str("email", email).Msg("login rejected")
		return nil, fmt.Errorf("%w: invalid credentials", auth.ErrUnauthorized)
	}

	token, expiresAt, err := s.tokens.GenerateToken(auth.PrincipalFromUser(user))
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Register creates a USER account.
func (s *UserService) Register(ctx context.Context, in UserInput) (*models.User, error) {
	in.Role = models.RoleUser
	return s.create(ctx, in)
}

func (s *UserService) Me(ctx context.Context, p auth.Principal) (*models.User, error) {
	return s.repo.GetUserByID(ctx, p.UserID)
}

func (s *UserService) ListUsers(ctx context.Context, p auth.Principal) ([]*models.User, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

func (s *UserService) GetUser(ctx context.Context, p auth.Principal, id int64) (*models.User, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, id)
}

// CreateUser adds an account with any role. Admin only.
func (s *UserService) CreateUser(ctx context.Context, p auth.Principal, in UserInput) (*models.User, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	return s.create(ctx, in)
}

// UpdateUser changes name, role or password. The last admin cannot be demoted.
func (s *UserService) UpdateUser(ctx context.Context, p auth.Principal, id int64, upd UserUpdate) (*models.User, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		user.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Role != nil {
		role := strings.ToUpper(strings.TrimSpace(*upd.Role))
		if !models.ValidRole(role) {
			return nil, fmt.Errorf("%w: role must be ADMIN or USER", database.ErrInvalidInput)
		}
		if user.IsAdmin() && role != models.RoleAdmin {
			if err := s.ensureAnotherAdmin(ctx); err != nil {
				return nil, err
			}
		}
		user.Role = role
	}
	if upd.Password != nil {
		hash, err := hashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", user.ID).Str("by", p.Email).Msg("user updated")
	return user, nil
}

// DeleteUser removes an account. The last admin cannot be deleted.
func (s *UserService) DeleteUser(ctx context.Context, p auth.Principal, id int64) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", id).Str("by", p.Email).Msg("user deleted")
	return nil
}

// BootstrapAdmin makes sure the configured admin account exists.
func (s *UserService) BootstrapAdmin(ctx context.Context, email, password, name string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		if !existing.IsAdmin() {
			s.logger.Warn().Str("email", email).Msg("bootstrap admin exists without ADMIN role")
		}
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	if name == "" {
		name = "Administrator"
	}
	user, err := s.create(ctx, UserInput{Email: email, Name: name, Password: password, Role: models.RoleAdmin})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	s.logger.Info().Int64("user_id", user.ID).Str("email", email).Msg("bootstrap admin created")
	return nil
}

func (s *UserService) create(ctx context.Context, in UserInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", database.ErrInvalidInput)
	}
	role := strings.ToUpper(strings.TrimSpace(in.Role))
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: role must be ADMIN or USER", database.ErrInvalidInput)
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) ensureAnotherAdmin(ctx context.Context) error {
	n, err := s.repo.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return fmt.Errorf("%w: at least one admin must remain", database.ErrConflict)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrWeakPassword) {
		return "", fmt.Errorf("%w: %w", database.ErrInvalidInput, err)
	}
	return hash, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
