package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/influenza/backend/internal/model"
)

const userColumns = `id, user_name, email, password_hash, reset_token_hash, reset_token_expires_at, created_at, updated_at`

func (db *Postgres) CreateUser(ctx context.Context, userName, email, passwordHash string) (*model.User, error) {
	query := `
		INSERT INTO users (id, user_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + userColumns
	return db.scanUser(db.Pool.QueryRow(ctx, query, uuid.New(), userName, email, passwordHash))
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`
	return db.scanUser(db.Pool.QueryRow(ctx, query, email))
}

func (db *Postgres) GetUserByID(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	return db.scanUser(db.Pool.QueryRow(ctx, query, userID))
}

func (db *Postgres) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := db.Pool.Exec(ctx, query, userID, passwordHash)
	return err
}

// SetResetToken stores the hashed reset token and its absolute expiry.
// Hash and expiry are always written together, so the pair is never half set.
func (db *Postgres) SetResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err := db.Pool.Exec(ctx, query, userID, tokenHash, expiresAt)
	return err
}

func (db *Postgres) ClearResetToken(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE users
		SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = NOW()
		WHERE id = $1
	`
	_, err := db.Pool.Exec(ctx, query, userID)
	return err
}

// GetUserByResetToken looks up a user whose stored hash matches AND whose
// expiry is still in the future. The combined condition means callers cannot
// tell a wrong token apart from an expired one.
func (db *Postgres) GetUserByResetToken(ctx context.Context, tokenHash string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE reset_token_hash = $1 AND reset_token_expires_at > NOW()
	`
	return db.scanUser(db.Pool.QueryRow(ctx, query, tokenHash))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *Postgres) scanUser(row rowScanner) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.UserName,
		&user.Email,
		&user.PasswordHash,
		&user.ResetTokenHash,
		&user.ResetTokenExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
