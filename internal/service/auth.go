package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/influenza/backend/internal/db"
	"github.com/influenza/backend/internal/model"
)

const (
	minUserNameLength = 2
	minPasswordLength = 6
	// bcrypt rejects anything longer than 72 bytes.
	maxPasswordLength = 72

	resetTokenExpiryHours = 1
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidResetToken = errors.New("invalid or expired token")
	ErrEmailSend         = errors.New("failed to send email")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validPasswordLength(password string) bool {
	return len(password) >= minPasswordLength && len(password) <= maxPasswordLength
}

// UserStore is the credential store surface the auth flows need.
// *db.Postgres implements it.
type UserStore interface {
	CreateUser(ctx context.Context, userName, email, passwordHash string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*model.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	SetResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, userID uuid.UUID) error
	GetUserByResetToken(ctx context.Context, tokenHash string) (*model.User, error)
}

// Mailer is the email collaborator contract: deliver a reset link or fail.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, toName, resetToken string) error
}

type AuthService struct {
	store  UserStore
	tokens *TokenService
	mailer Mailer
	logger *zap.Logger
}

func NewAuthService(store UserStore, tokens *TokenService, mailer Mailer, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:  store,
		tokens: tokens,
		mailer: mailer,
		logger: logger,
	}
}

func (s *AuthService) SignUp(ctx context.Context, userName, email, password string) (*model.User, error) {
	userName = strings.TrimSpace(userName)
	email = strings.TrimSpace(strings.ToLower(email))

	if len(userName) < minUserNameLength || !emailPattern.MatchString(email) || !validPasswordLength(password) {
		return nil, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, userName, email, string(hash))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return user, nil
}

// SignIn verifies credentials and mints both tokens. No session row is
// created; authentication state lives entirely in the tokens.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*model.User, string, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, "", "", ErrNotFound
		}
		return nil, "", "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", "", ErrUnauthorized
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, "", "", err
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, "", "", err
	}

	return user, accessToken, refreshToken, nil
}

// Refresh validates the refresh token and mints a new access token only.
// The refresh token itself is not rotated; it stays valid until its expiry.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrUnauthorized
	}

	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrUnauthorized
	}

	// The subject may no longer resolve when the account was deleted.
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if db.IsNoRows(err) {
			return "", ErrNotFound
		}
		return "", err
	}

	return s.tokens.IssueAccessToken(userID)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	if currentPassword == "" || !validPasswordLength(newPassword) {
		return ErrInvalidInput
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrUnauthorized
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, userID, string(hash))
}

// ForgotPassword stores a hashed reset token and emails the plaintext to the
// user. Unknown emails return nil so responses cannot be used to probe which
// accounts exist. If the email send fails, the stored token is rolled back so
// a token the user never received cannot linger valid.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return nil
		}
		return err
	}

	plaintext, err := s.tokens.GenerateResetToken()
	if err != nil {
		return err
	}

	hash := s.tokens.HashResetToken(plaintext)
	expiresAt := s.tokens.ComputeExpiry(resetTokenExpiryHours)
	if err := s.store.SetResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.UserName, plaintext); err != nil {
		s.logger.Error("reset email send failed, rolling back token",
			zap.String("userId", user.ID.String()),
			zap.Error(err),
		)
		if clearErr := s.store.ClearResetToken(ctx, user.ID); clearErr != nil {
			return fmt.Errorf("%w: rollback failed: %v", ErrEmailSend, clearErr)
		}
		return ErrEmailSend
	}

	return nil
}

// ResetPassword consumes a reset token: the combined hash+expiry lookup does
// not distinguish a wrong token from an expired one, and success clears both
// fields so the token is single use.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || !validPasswordLength(newPassword) {
		return ErrInvalidInput
	}

	user, err := s.store.GetUserByResetToken(ctx, s.tokens.HashResetToken(token))
	if err != nil {
		if db.IsNoRows(err) {
			return ErrInvalidResetToken
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.store.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	return s.store.ClearResetToken(ctx, user.ID)
}

// GetUser resolves the authenticated subject for /user/me.
func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}
