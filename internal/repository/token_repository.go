package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"
)

// TokenRepo provides data access to the refresh_tokens table.  Only the
// SHA-256 hash of a refresh token is ever stored.
type TokenRepo struct {
    db *sql.DB
}

// NewTokenRepo returns a new TokenRepo bound to the provided database.
func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// ErrTokenNotFound is returned when a refresh token is absent, expired or
// revoked.
var ErrTokenNotFound = errors.New("refresh token not found")

// StoreRefresh persists a hashed refresh token for a user.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error {
    _, err := r.db.ExecContext(ctx,
        `INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`,
        userID, tokenHash, expiresAt.UTC().Format("2006-01-02 15:04:05"))
    return err
}

// LookupRefresh returns the owning user for a valid (unexpired, unrevoked)
// token hash.
func (r *TokenRepo) LookupRefresh(ctx context.Context, tokenHash string) (uint64, error) {
    var userID uint64
    err := r.db.QueryRowContext(ctx,
        `SELECT user_id FROM refresh_tokens
         WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > UTC_TIMESTAMP()`,
        tokenHash).Scan(&userID)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, ErrTokenNotFound
    }
    if err != nil {
        return 0, err
    }
    return userID, nil
}

// RevokeRefresh marks a token as revoked.  Returns ErrTokenNotFound when
// no active token matched the hash.
func (r *TokenRepo) RevokeRefresh(ctx context.Context, tokenHash string) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP() WHERE token_hash = ? AND revoked_at IS NULL`,
        tokenHash)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrTokenNotFound
    }
    return nil
}
