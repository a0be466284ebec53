package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sweet_shop/internal/common"
	"sweet_shop/internal/common/security"
	"sweet_shop/internal/domain/model"
	"sweet_shop/internal/domain/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 32
	MinPasswordLen = 6

	// bcrypt refuses longer input.
	MaxPasswordBytes = 72
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

type AuthService struct {
	userRepo repository.UserRepository
	tokens   *security.TokenManager
	log      *zap.Logger
	now      func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, tokens *security.TokenManager, log *zap.Logger) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens, log: log, now: time.Now}
}

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	// Email is accepted as a legacy alias for Username; accounts have no email.
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  model.PublicUser `json:"user"`
	Token string           `json:"token"`
}

// ValidateSignup checks the credential rules and returns the normalized username.
func ValidateSignup(req SignupRequest) (string, error) {
	username := strings.TrimSpace(req.Username)
	switch {
	case username == "":
		return "", common.NewValidationError("username", "Username is required")
	case len(username) < MinUsernameLen:
		return "", common.NewValidationError("username", fmt.Sprintf("Username must be at least %d characters", MinUsernameLen))
	case len(username) > MaxUsernameLen:
		return "", common.NewValidationError("username", fmt.Sprintf("Username must not exceed %d characters", MaxUsernameLen))
	case !usernamePattern.MatchString(username):
		return "", common.NewValidationError("username", "Username may only contain letters, digits, '_', '.' and '-'")
	}
	if req.Password == "" {
		return "", common.NewValidationError("password", "Password is required")
	}
	if len(req.Password) < MinPasswordLen {
		return "", common.NewValidationError("password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLen))
	}
	if len(req.Password) > MaxPasswordBytes {
		return "", common.NewValidationError("password", fmt.Sprintf("Password must not exceed %d bytes", MaxPasswordBytes))
	}
	return username, nil
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	username, err := ValidateSignup(req)
	if err != nil {
		return nil, err
	}

	// Read-then-write; the unique index still catches a racing signup.
	if _, err := s.userRepo.FindByUsername(ctx, username); err == nil {
		return nil, common.ErrDuplicateUsername
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:             uuid.NewString(),
		Username:       username,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	s.log.Info("user signed up", zap.String("username", user.Username), zap.String("user_id", user.ID))
	return &AuthResponse{User: user.Public(), Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = strings.TrimSpace(req.Email)
	}
	if username == "" || req.Password == "" {
		return nil, common.NewValidationError("credentials", "Missing credentials. Please provide username and password")
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized // Generic message for security
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.VerifyPassword(user, req.Password) {
		return nil, common.ErrUnauthorized
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResponse{User: user.Public(), Token: token}, nil
}

// VerifyPassword re-derives the hash from the plaintext; plaintext is never compared directly.
func (s *AuthService) VerifyPassword(user *model.User, password string) bool {
	return security.CheckPasswordHash(password, user.HashedPassword)
}
