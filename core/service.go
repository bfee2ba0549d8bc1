package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// AuthService handles password login and self-registration.
type AuthService struct {
	users UserRepository
	codec *TokenCodec
}

func NewAuthService(users UserRepository, codec *TokenCodec) *AuthService {
	return &AuthService{users: users, codec: codec}
}

// Authenticate checks username/password against the stored bcrypt hash.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*UserRecord, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int64     `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Principal `json:"user"`
}

// Login authenticates and issues a bearer token for the user.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return LoginResult{}, err
	}
	token, claims, err := s.codec.Issue(u.Username)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		Token:     token,
		TokenType: strings.TrimSpace(bearerPrefix),
		ExpiresIn: int64(s.codec.TTL() / time.Second),
		ExpiresAt: claims.ExpiresAt,
		User:      u.Principal(),
	}, nil
}

// RegisterInput carries a self-registration request.
type RegisterInput struct {
	Username string `json:"username" binding:"required,notblank"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates a USER account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*UserRecord, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return nil, fmt.Errorf("%w: username: must not be blank", ErrValidation)
	}
	if in.Email == "" {
		return nil, fmt.Errorf("%w: email: must not be blank", ErrValidation)
	}
	if err := ValidatePasswordStrength(in.Password); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	return s.users.Create(ctx, UserRecord{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         RoleUser,
	})
}

func (s *AuthService) ensureUnique(ctx context.Context, username, email string) error {
	taken, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: email already exists", ErrConflict)
	}
	taken, err = s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: username already exists", ErrConflict)
	}
	return nil
}

// HashPassword returns a bcrypt hash at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

const passwordSpecials = "@#$%^&+=!"

// ValidatePasswordStrength requires at least 8 characters with an upper
// case letter, a lower case letter, a digit and one of @#$%^&+=!.
func ValidatePasswordStrength(password string) error {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if len([]rune(password)) < 8 || !upper || !lower || !digit || !special {
		return fmt.Errorf("%w: password must be at least 8 characters, include uppercase, lowercase, number, and special character", ErrValidation)
	}
	return nil
}
