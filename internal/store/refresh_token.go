package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTokenReused  = errors.New("refresh token reused")
	ErrTokenExpired = errors.New("refresh token expired")
)

type RefreshToken struct {
	ID         string
	UserID     string
	Hash       string
	ExpiresAt  time.Time
	Revoked    bool
	ReplacedBy *string
	CreatedAt  time.Time
}

func (s *Store) SaveRefreshToken(ctx context.Context, rt RefreshToken) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at) VALUES ($1, $2, $3, $4)`,
		rt.ID, rt.UserID, rt.Hash, rt.ExpiresAt)
	return err
}

func (s *Store) RefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	var rt RefreshToken
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked, replaced_by, created_at
		FROM refresh_tokens WHERE token_hash = $1`, hash,
	).Scan(&rt.ID, &rt.UserID, &rt.Hash, &rt.ExpiresAt, &rt.Revoked, &rt.ReplacedBy, &rt.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &rt, nil
}

// RotateRefreshToken exchanges the token with the given hash for next and
// returns the owner. The old row is locked, so two concurrent exchanges of
// the same token cannot both succeed. Presenting a token that was already
// exchanged revokes every token of its owner and returns ErrTokenReused.
func (s *Store) RotateRefreshToken(ctx context.Context, hash string, next RefreshToken, now time.Time) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var old RefreshToken
	err = tx.QueryRow(ctx, `
		SELECT id, user_id, expires_at, revoked FROM refresh_tokens
		WHERE token_hash = $1 FOR UPDATE`, hash,
	).Scan(&old.ID, &old.UserID, &old.ExpiresAt, &old.Revoked)
	if err != nil {
		return "", notFound(err)
	}

	if old.Revoked {
		if _, err := tx.Exec(ctx,
			`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`,
			old.UserID); err != nil {
			return "", err
		}
		if err := tx.Commit(ctx); err != nil {
			return "", err
		}
		return old.UserID, ErrTokenReused
	}
	if now.After(old.ExpiresAt) {
		return old.UserID, ErrTokenExpired
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at) VALUES ($1, $2, $3, $4)`,
		next.ID, old.UserID, next.Hash, next.ExpiresAt); err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, replaced_by = $1 WHERE id = $2`,
		next.ID, old.ID); err != nil {
		return "", err
	}
	return old.UserID, tx.Commit(ctx)
}

// RevokeAllRefreshTokens is used on logout.
func (s *Store) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`, userID)
	return err
}

// SweepRefreshTokens removes tokens that expired before cutoff. Revoked tokens
// are kept until they expire so reuse of a rotated token can still be detected.
func (s *Store) SweepRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
