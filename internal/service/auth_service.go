package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"planningpoker/internal/model"
	"planningpoker/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthService handles login and caller identity tokens
type AuthService struct {
	users     repository.UserRepo
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users repository.UserRepo, secret string, tokenTTL time.Duration, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:     users,
		jwtSecret: []byte(secret),
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

// HashPassword hashes a plain password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// Login validates credentials and returns a signed token with the user session
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, validationErr("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, storageErr("get user", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.logger.Info("login rejected", zap.String("email", email))
		return nil, ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user.Identity())
	if err != nil {
		return nil, err
	}
	s.logger.Info("login", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	return &model.LoginResponse{
		Token: token,
		User:  user.Identity(),
	}, nil
}

// GenerateToken signs a token for id
func (s *AuthService) GenerateToken(id model.Identity) (string, error) {
	now := time.Now()
	claims := &model.UserClaims{
		UserID: id.UserID,
		Name:   id.Name,
		Email:  id.Email,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken validates a JWT and returns the caller identity
func (s *AuthService) ValidateToken(tokenString string) (model.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return model.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.UserClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return model.Identity{}, ErrInvalidToken
	}

	return model.Identity{
		UserID: claims.UserID,
		Name:   claims.Name,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}
