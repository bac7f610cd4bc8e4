// Package service holds the reference backend's business rules: account
// authentication and the project/task/bug workflow.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/devtrack/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidRole        = errors.New("invalid role")
)

const tokenType = "bearer"

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	// UserExists reports whether the email is already registered.
	UserExists(ctx context.Context, email string) (bool, error)
	// CreateUser stores a new account. Duplicates yield models.ErrConflict.
	CreateUser(ctx context.Context, acc models.Account) (models.Account, error)
	// UserByEmail loads an account or returns models.ErrNotFound.
	UserByEmail(ctx context.Context, email string) (models.Account, error)
}

// Claims is the access token payload. Subject carries the email.
type Claims struct {
	UID      int64       `json:"uid"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service implements registration, login and token verification.
type Service struct {
	repo     AuthRepository
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// NewAuthService constructs a Service signing HS256 tokens with secret.
func NewAuthService(repo AuthRepository, secret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 30 * time.Minute
	}
	return &Service{repo: repo, secret: []byte(secret), tokenTTL: tokenTTL, now: time.Now}
}

// HashPassword returns the bcrypt hash stored for an account.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Register creates an account and signs it in. An empty role becomes
// models.DefaultRole.
func (s *Service) Register(ctx context.Context, reg models.Registration) (*models.AuthResult, error) {
	if reg.Role == "" {
		reg.Role = models.DefaultRole
	}
	if !reg.Role.Valid() {
		return nil, ErrInvalidRole
	}

	email := strings.TrimSpace(reg.Email)
	exists, err := s.repo.UserExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}
	// a concurrent registration can still win the race; the unique
	// index reports it as a conflict
	acc, err := s.repo.CreateUser(ctx, models.Account{
		Identity: models.Identity{
			Email:    email,
			Username: strings.TrimSpace(reg.Username),
			Role:     reg.Role,
		},
		PasswordHash: hash,
	})
	if errors.Is(err, models.ErrConflict) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	return s.issue(acc.Identity)
}

// Login checks the password and returns a fresh access token.
func (s *Service) Login(ctx context.Context, creds models.Credentials) (*models.AuthResult, error) {
	acc, err := s.repo.UserByEmail(ctx, strings.TrimSpace(creds.Email))
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !acc.IsActive {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(creds.Password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(acc.Identity)
}

func (s *Service) issue(id models.Identity) (*models.AuthResult, error) {
	now := s.now()
	claims := Claims{
		UID:      id.ID,
		Username: id.Username,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &models.AuthResult{AccessToken: token, TokenType: tokenType, User: id}, nil
}

// ParseToken verifies an access token and returns the identity it carries.
func (s *Service) ParseToken(token string) (models.Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UID == 0 || claims.Subject == "" {
		return models.Identity{}, ErrInvalidToken
	}
	return models.Identity{
		ID:       claims.UID,
		Email:    claims.Subject,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}
