// Package album implements the read-side album lookups the Ingestion
// Service and Query Service need: the album-exists check for an
// album_id passed on upload, and an album's derived aggregates
// (item count, min/max taken_at) via join, per spec §3 ("its
// aggregates... are derived via join").
package album

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ovacore/photonic/internal/apperr"
	"github.com/ovacore/photonic/internal/repository"
)

var ErrNotFound = errors.New("album not found")

// Album is an owner's named collection; Title/Description are
// user-supplied, the rest is derived.
type Album struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Title       string
	Description *string
}

// Aggregate is an album's derived join shape.
type Aggregate struct {
	Album
	ItemCount int
	MinTaken  *time.Time
	MaxTaken  *time.Time
}

type Repo struct{}

func New() *Repo { return &Repo{} }

// Exists checks the album belongs to owner, returning
// apperr.KindMediumNotFound (mapped to HTTP 404, spec §6: "404
// referenced album missing") if it is absent.
func (r *Repo) Exists(ctx context.Context, db repository.DBTX, owner, id uuid.UUID) error {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM albums WHERE id = $1 AND owner_id = $2)`, id, owner,
	).Scan(&exists)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseFailure, "check album exists", err)
	}
	if !exists {
		return apperr.Wrap(apperr.KindMediumNotFound, "album not found", ErrNotFound)
	}
	return nil
}

// Aggregates joins an album with its media to compute item count and
// the min/max taken_at across the leading item of each member medium.
func (r *Repo) Aggregates(ctx context.Context, db repository.DBTX, owner, id uuid.UUID) (*Aggregate, error) {
	a := &Aggregate{}
	err := db.QueryRowContext(ctx, `
		SELECT a.id, a.owner_id, a.title, a.description,
		       COUNT(m.id), MIN(info.taken_at), MAX(info.taken_at)
		FROM albums a
		LEFT JOIN media m ON m.album_id = a.id AND m.deleted_at IS NULL
		LEFT JOIN medium_item_info info ON info.id = m.leading_item_id
		WHERE a.id = $1 AND a.owner_id = $2
		GROUP BY a.id, a.owner_id, a.title, a.description`, id, owner,
	).Scan(&a.ID, &a.OwnerID, &a.Title, &a.Description, &a.ItemCount, &a.MinTaken, &a.MaxTaken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.KindMediumNotFound, "album not found", ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseFailure, "album aggregates", err)
	}
	return a, nil
}
