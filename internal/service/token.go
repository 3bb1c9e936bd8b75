package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/influenza/backend/internal/config"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour

	resetTokenBytes = 32
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenMalformed = errors.New("token malformed")
)

// TokenService issues and verifies the two JWT kinds and generates password
// reset tokens. Access and refresh tokens are signed with separate secrets so
// compromise of one does not compromise the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
}

func NewTokenService(cfg config.AuthConfig) (*TokenService, error) {
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, fmt.Errorf("access and refresh token secrets must differ")
	}
	return &TokenService{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
	}, nil
}

func (s *TokenService) IssueAccessToken(userID uuid.UUID) (string, error) {
	return sign(userID, s.accessSecret, accessTokenTTL)
}

func (s *TokenService) IssueRefreshToken(userID uuid.UUID) (string, error) {
	return sign(userID, s.refreshSecret, refreshTokenTTL)
}

func (s *TokenService) VerifyAccessToken(token string) (uuid.UUID, error) {
	return verify(token, s.accessSecret)
}

func (s *TokenService) VerifyRefreshToken(token string) (uuid.UUID, error) {
	return verify(token, s.refreshSecret)
}

// GenerateResetToken returns a new plaintext reset token: 32 bytes from
// crypto/rand, hex-encoded. Only its hash ever reaches the store.
func (s *TokenService) GenerateResetToken() (string, error) {
	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// HashResetToken is deterministic so the same function serves storing and
// looking up.
func (s *TokenService) HashResetToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func (s *TokenService) ComputeExpiry(hours int) time.Time {
	return time.Now().Add(time.Duration(hours) * time.Hour)
}

func (s *TokenService) AccessTokenTTL() time.Duration {
	return accessTokenTTL
}

func (s *TokenService) RefreshTokenTTL() time.Duration {
	return refreshTokenTTL
}

func sign(userID uuid.UUID, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func verify(tokenStr string, secret []byte) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return uuid.Nil, classifyJWTError(err)
	}
	if !token.Valid {
		return uuid.Nil, ErrTokenInvalid
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrTokenMalformed
	}
	return userID, nil
}

// classifyJWTError maps jwt/v5 sentinel errors onto the service taxonomy in
// one place instead of inspecting errors at each call site.
func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenInvalid
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return ErrTokenMalformed
	}
}
