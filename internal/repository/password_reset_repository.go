package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// PasswordResetRepo manages single-use reset tokens keyed by email.  Only
// a bcrypt hash of the token is stored; the raw value travels once in the
// reset link.  A row older than 24 hours is treated as expired.
type PasswordResetRepo struct{ DB *sql.DB }

func NewPasswordResetRepo(db *sql.DB) *PasswordResetRepo { return &PasswordResetRepo{DB: db} }

// ErrResetNotFound indicates that no reset row exists for the email.
var ErrResetNotFound = errors.New("password reset not found")

// ResetTTL is how long a reset token stays valid after issuance.
const ResetTTL = 24 * time.Hour

// Replace removes any previous reset row for the email and inserts a new
// one.  Issuing a new link always invalidates the old one.
func (r *PasswordResetRepo) Replace(ctx context.Context, email, tokenHash string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := r.DB.ExecContext(ctx,
		"DELETE FROM password_resets WHERE email=?", email); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_resets (email, token_hash, created_at) VALUES (?,?,?)",
		email, tokenHash, time.Now().UTC())
	return err
}

// Get returns the stored token hash and creation time for the email.
func (r *PasswordResetRepo) Get(ctx context.Context, email string) (string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var hash string
	var createdAt time.Time
	err := r.DB.QueryRowContext(ctx,
		"SELECT token_hash, created_at FROM password_resets WHERE email=? LIMIT 1",
		email).Scan(&hash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, ErrResetNotFound
	}
	return hash, createdAt, err
}

// Delete removes the reset row for the email, if any.
func (r *PasswordResetRepo) Delete(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := r.DB.ExecContext(ctx, "DELETE FROM password_resets WHERE email=?", email)
	return err
}
