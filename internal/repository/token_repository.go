package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go-task-tracker/internal/model"
)

// ErrRefreshInvalid is returned when a refresh token hash does not
// resolve to an active session: unknown, revoked or expired all look
// the same to the caller.  Maps to HTTP 401.
var ErrRefreshInvalid = errors.New("invalid refresh token")

// TokenRepo persists and validates refresh tokens.  Only the SHA-256
// hash of a token ever reaches this layer.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row for a login session.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// ValidateRefresh returns the owning userID if a non-revoked,
// non-expired token row exists for the hash.  Every failure mode
// collapses to ErrRefreshInvalid so callers cannot distinguish a
// revoked token from one that never existed.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var (
		tok       model.RefreshToken
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&tok.UserID, &tok.ExpiresAt, &revokedAt)
	if err == sql.ErrNoRows {
		return 0, ErrRefreshInvalid
	}
	if err != nil {
		return 0, err
	}
	if revokedAt.Valid {
		tok.RevokedAt = &revokedAt.Time
	}
	if tok.IsRevoked() || tok.IsExpired(time.Now().UTC()) {
		return 0, ErrRefreshInvalid
	}
	return tok.UserID, nil
}

// RevokeByHash marks a token as revoked.  Revoking an already revoked
// token is a no-op, not an error.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// RevokeAllForUser revokes every active token of a user, terminating
// all of their sessions.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}
