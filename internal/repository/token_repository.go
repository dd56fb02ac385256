package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrRefreshInvalid covers unknown, expired and revoked refresh tokens.
// Callers answer all three the same way.
var ErrRefreshInvalid = errors.New("refresh token invalid")

// TokenRepo stores refresh tokens by SHA-256 hash.  A token is valid until
// it expires or is revoked; rotation consumes it.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?)",
		userID, tokenHash, exp.UTC().Truncate(time.Second), now())
	return err
}

type refreshRow struct {
	id, userID uint64
}

func (r *TokenRepo) lookup(ctx context.Context, tokenHash string) (refreshRow, error) {
	var (
		row       refreshRow
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&row.id, &row.userID, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return row, ErrRefreshInvalid
	}
	if err != nil {
		return row, err
	}
	if revokedAt.Valid || !time.Now().UTC().Before(expiresAt) {
		return row, ErrRefreshInvalid
	}
	return row, nil
}

// ValidateRefresh returns the owner of a live token without consuming it.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	row, err := r.lookup(ctx, tokenHash)
	return row.userID, err
}

// ConsumeRefresh revokes a live token and returns its owner.  The revoke is
// conditional, so two concurrent refreshes with the same token cannot both
// succeed.
func (r *TokenRepo) ConsumeRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	row, err := r.lookup(ctx, tokenHash)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE id=? AND revoked_at IS NULL", now(), row.id)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n != 1 {
		return 0, ErrRefreshInvalid
	}
	return row.userID, nil
}

func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		now(), tokenHash)
	return err
}

// RevokeAllForUser ends every session of a user, used by logout and when
// an admin disables an account.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		now(), userID)
	return err
}

// PurgeStale deletes revoked tokens and tokens that expired before cutoff.
func (r *TokenRepo) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE revoked_at IS NOT NULL OR expires_at < ?",
		cutoff.UTC().Truncate(time.Second))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
