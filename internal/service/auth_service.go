package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

const minPasswordLen = 6

// RegisterInput is the data required to open an account.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// ProfileInput carries optional profile changes; nil fields stay as they are.
type ProfileInput struct {
	FullName       *string
	TelegramChatID *int64
}

// AuthService owns registration, credential checks and session issuing.
type AuthService struct {
	users    *repository.UserRepository
	sessions *SessionIssuer
	cost     int
}

func NewAuthService(users *repository.UserRepository, sessions *SessionIssuer) *AuthService {
	return &AuthService{users: users, sessions: sessions, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.cost = cost
	return s
}

// Register creates the user and returns it together with a session token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*model.User, string, error) {
	email := normalizeEmail(input.Email)
	fullName := strings.TrimSpace(input.FullName)

	verr := &ValidationError{}
	if !validEmail(email) {
		verr.add("email", "Invalid email address")
	}
	if len(input.Password) < minPasswordLen {
		verr.add("password", fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
	}
	if fullName == "" {
		verr.add("fullName", "Full name is required")
	}
	if err := verr.orNil(); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{Email: email, PasswordHash: string(hash), FullName: fullName}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", err
	}

	token, err := s.sessions.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login checks credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = normalizeEmail(email)

	verr := &ValidationError{}
	if !validEmail(email) {
		verr.add("email", "Invalid email address")
	}
	if password == "" {
		verr.add("password", "Password is required")
	}
	if err := verr.orNil(); err != nil {
		return nil, "", err
	}

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, "", ErrInvalidCredentials
	case err != nil:
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.sessions.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate resolves a session token to the user id it was issued for.
func (s *AuthService) Authenticate(token string) (string, error) {
	claims, err := s.sessions.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of input to the user.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (*model.User, error) {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			return nil, &ValidationError{Fields: []FieldError{{Field: "fullName", Message: "Full name is required"}}}
		}
		updates["full_name"] = name
	}
	if input.TelegramChatID != nil {
		if *input.TelegramChatID == 0 {
			updates["telegram_chat_id"] = nil
		} else {
			updates["telegram_chat_id"] = *input.TelegramChatID
		}
	}

	if err := s.users.Update(ctx, user, updates); err != nil {
		return nil, err
	}
	return s.CurrentUser(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, ".")
}
