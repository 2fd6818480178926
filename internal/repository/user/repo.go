package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/ovacore/photonic/internal/apperr"
	"github.com/ovacore/photonic/internal/repository"
)

// ErrNotFound mirrors apperr.KindMediumNotFound's sibling for users;
// the pipeline never returns a bare 404 for a missing user (ingestion
// always upserts first), so this is only surfaced to callers that
// explicitly want to distinguish it.
var ErrNotFound = errors.New("user not found")

// Repo implements upsert_user and the quota read.
type Repo struct{}

func New() *Repo { return &Repo{} }

// Upsert inserts or updates a user row on primary-key conflict. It
// never touches quota_used — that column is a derived aggregate the
// core treats as read-only (spec §3).
func (r *Repo) Upsert(ctx context.Context, db repository.DBTX, u *User) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, quota, quota_used)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			quota = EXCLUDED.quota`,
		u.ID, u.Username, u.Email, u.Quota,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseFailure, "upsert user", err)
	}
	return nil
}

// Get reads quota and quota_used for the ingestion precheck.
func (r *Repo) Get(ctx context.Context, db repository.DBTX, id uuid.UUID) (*User, error) {
	u := &User{ID: id}
	err := db.QueryRowContext(ctx, `
		SELECT username, email, quota, quota_used FROM users WHERE id = $1`, id,
	).Scan(&u.Username, &u.Email, &u.Quota, &u.QuotaUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.KindMediumNotFound, "user not found", ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseFailure, "get user", err)
	}
	return u, nil
}
