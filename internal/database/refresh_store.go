package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/regulens/compliance-core/pkg/auth"
)

// RefreshStore implements pkg/auth.RefreshStore over the connection pool.
type RefreshStore struct {
	pool *Pool
}

// NewRefreshStore builds a pkg/auth.RefreshStore backed by Postgres.
func NewRefreshStore(pool *Pool) *RefreshStore {
	return &RefreshStore{pool: pool}
}

type refreshRow struct {
	Token     string          `db:"refresh_token"`
	UserID    string          `db:"user_id"`
	Username  string          `db:"username"`
	Roles     json.RawMessage `db:"roles"`
	ExpiresAt sql.NullTime    `db:"expires_at"`
	Revoked   bool            `db:"is_revoked"`
	RevokedAt sql.NullTime    `db:"revoked_at"`
	CreatedAt sql.NullTime    `db:"created_at"`
}

func (s *RefreshStore) Insert(ctx context.Context, rt auth.RefreshToken) error {
	roles, err := json.Marshal(rt.Roles)
	if err != nil {
		return err
	}
	_, err = s.pool.Raw().ExecContext(ctx, `
		INSERT INTO user_refresh_tokens (refresh_token, user_id, username, roles, expires_at, is_revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`, rt.Token, rt.UserID, rt.Username, roles, rt.ExpiresAt, rt.CreatedAt)
	if err != nil {
		return wrapFailure("insert refresh token", err)
	}
	return nil
}

func (s *RefreshStore) Get(ctx context.Context, token string) (*auth.RefreshToken, error) {
	var row refreshRow
	err := s.pool.Raw().GetContext(ctx, &row, `
		SELECT refresh_token, user_id, username, roles, expires_at, is_revoked, revoked_at, created_at
		FROM user_refresh_tokens WHERE refresh_token = $1
	`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapFailure("lookup refresh token", err)
	}

	var roles []string
	_ = json.Unmarshal(row.Roles, &roles)

	out := &auth.RefreshToken{
		Token:     row.Token,
		UserID:    row.UserID,
		Username:  row.Username,
		Roles:     roles,
		ExpiresAt: row.ExpiresAt.Time,
		Revoked:   row.Revoked,
		CreatedAt: row.CreatedAt.Time,
	}
	if row.RevokedAt.Valid {
		t := row.RevokedAt.Time
		out.RevokedAt = &t
	}
	return out, nil
}

func (s *RefreshStore) Revoke(ctx context.Context, token string) error {
	_, err := s.pool.Raw().ExecContext(ctx, `
		UPDATE user_refresh_tokens SET is_revoked = TRUE, revoked_at = now() WHERE refresh_token = $1
	`, token)
	if err != nil {
		return wrapFailure("revoke refresh token", err)
	}
	return nil
}
