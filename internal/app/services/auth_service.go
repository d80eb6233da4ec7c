package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/slotbook/internal/pkg/apperrors"
	"github.com/yigit/slotbook/internal/pkg/auth"
)

// AdminCredentials is the single administrator account. Password is either
// plaintext or a bcrypt hash.
type AdminCredentials struct {
	Username string
	Password string
}

// AuthService handles admin authentication
type AuthService interface {
	Login(ctx context.Context, username, password string) (token string, expiresAt time.Time, err error)
	ValidateSession(token string) (*auth.Claims, error)
}

type authServiceImpl struct {
	admin      AdminCredentials
	jwtService *auth.JWTService
	logger     zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(admin AdminCredentials, jwtService *auth.JWTService, logger zerolog.Logger) AuthService {
	return &authServiceImpl{
		admin:      admin,
		jwtService: jwtService,
		logger:     logger,
	}
}

func (s *authServiceImpl) checkPassword(password string) bool {
	if auth.IsBcryptHash(s.admin.Password) {
		return auth.CheckPassword(s.admin.Password, password)
	}
	return auth.EqualConstantTime(s.admin.Password, password)
}

// Login checks the admin credentials and issues a session token
func (s *authServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	userOK := auth.EqualConstantTime(s.admin.Username, username)
	passOK := s.checkPassword(password)
	if !userOK || !passOK {
		s.logger.Warn().Str("username", username).Msg("Failed admin login")
		return "", time.Time{}, &apperrors.CustomError{
			Err:     apperrors.ErrInvalidCredentials,
			Message: "invalid username or password",
		}
	}

	token, expiresAt, err := s.jwtService.IssueSession(s.admin.Username)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError("failed to create session", err)
	}

	s.logger.Info().Str("username", username).Msg("Admin logged in")
	return token, expiresAt, nil
}

// ValidateSession validates a session token from the cookie
func (s *authServiceImpl) ValidateSession(token string) (*auth.Claims, error) {
	claims, err := s.jwtService.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, &apperrors.CustomError{Err: apperrors.ErrTokenExpired, Message: "session expired, please log in again", Cause: err}
		}
		return nil, &apperrors.CustomError{Err: apperrors.ErrTokenInvalid, Message: "invalid session", Cause: err}
	}
	if !auth.EqualConstantTime(claims.Username, s.admin.Username) {
		return nil, &apperrors.CustomError{Err: apperrors.ErrTokenInvalid, Message: "invalid session"}
	}
	return claims, nil
}
