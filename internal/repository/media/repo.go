package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ovacore/photonic/internal/apperr"
	"github.com/ovacore/photonic/internal/repository"
)

// ErrMediumNotFound mirrors apperr.KindMediumNotFound for callers that
// want a sentinel to errors.Is against, the way the teacher's repo.go
// exposes ErrMediaNotFound alongside its wrapped errors.
var ErrMediumNotFound = errors.New("medium not found")

const maxPerPage = 100

// Repo implements the Persistence Layer's medium-shaped operations
// (create_medium, create_medium_item, create_medium_item_info,
// update_medium_item_info, add_location, move_location,
// find_locations, find_media, find_medium_items, get_medium). Every
// method accepts a repository.DBTX so callers can run it against a
// pooled *sql.DB or an in-flight *sql.Tx interchangeably.
type Repo struct{}

// New returns a Repo. It carries no state: every method takes its
// connection handle explicitly, per spec §4.4's "connection handle"
// requirement.
func New() *Repo { return &Repo{} }

// CreateMedium inserts one medium row. Invariant 6 requires this run
// inside the same transaction as the item/info/location inserts it
// accompanies.
func (r *Repo) CreateMedium(ctx context.Context, db repository.DBTX, m *Medium) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO media (id, owner_id, medium_type, leading_item_id, album_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.OwnerID, m.MediumType, m.LeadingItemID, m.AlbumID, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseFailure, "create medium", err)
	}
	return nil
}

// CreateItem inserts one medium_items row.
func (r *Repo) CreateItem(ctx context.Context, db repository.DBTX, it *Item) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO medium_items (id, medium_id, medium_item_type, mime, filename, extension, size, priority, last_saved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		it.ID, it.MediumID, it.Role, it.MIME, it.Filename, it.Extension, it.Size, it.Priority, it.LastSaved,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseFailure, "create medium item", err)
	}
	return nil
}

// CreateInfo inserts one medium_item_info row, client-supplied fields
// only; width/height are left unset for Enrichment to fill.
func (r *Repo) CreateInfo(ctx context.Context, db repository.DBTX, info *Info) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO medium_item_info (id, taken_at, taken_at_timezone, camera_make, camera_model, width, height)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		info.ID, info.TakenAt, info.TakenAtTimezone, info.CameraMake, info.CameraModel, info.Width, info.Height,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseFailure, "create medium item info", err)
	}
	return nil
}

// UpdateInfo applies the info-merge rule: for each of
// (taken_at, taken_at_timezone, camera_make, camera_model, width,
// height), the existing value wins; only a currently-NULL column is
// overwritten by proposal. COALESCE(column, proposal) encodes exactly
// that without a read-modify-write round trip.
func (r *Repo) UpdateInfo(ctx context.Context, db repository.DBTX, proposal *Info) error {
	res, err := db.ExecContext(ctx, `
		UPDATE medium_item_info SET
			taken_at = COALESCE(taken_at, $2),
			taken_at_timezone = COALESCE(taken_at_timezone, $3),
			camera_make = COALESCE(camera_make, $4),
			camera_model = COALESCE(camera_model, $5),
			width = COALESCE(width, $6),
			height = COALESCE(height, $7)
		WHERE id = $1`,
		proposal.ID, proposal.TakenAt, proposal.TakenAtTimezone,
		proposal.CameraMake, proposal.CameraModel, proposal.Width, proposal.Height,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseFailure, "update medium item info", err)
	}
	return checkRowsAffected(res, "medium item info")
}

// AddLocation inserts a new location row for an item. Locations are
// unique on (item_id, path); a collision surfaces as a database error
// (apperr.KindDatabaseFailure) and is returned to the caller as is.
func (r *Repo) AddLocation(ctx context.Context, db repository.DBTX, loc *Location) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO locations (item_id, variant, path)
		VALUES ($1, $2, $3)`,
		loc.ItemID, loc.Variant, loc.Path,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseFailure, "add location", err)
	}
	return nil
}

// MoveLocation matches the unique (item_id, prev.path) row and
// rewrites it to (next.variant, next.path) in place, per promotion
// step 6: the Location row is mutated, not replaced by a new row.
func (r *Repo) MoveLocation(ctx context.Context, db repository.DBTX, itemID uuid.UUID, prevPath string, next Location) error {
	res, err := db.ExecContext(ctx, `
		UPDATE locations SET variant = $1, path = $2
		WHERE item_id = $3 AND path = $4`,
		next.Variant, next.Path, itemID, prevPath,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseFailure, "move location", err)
	}
	return checkRowsAffected(res, "location")
}

// FindLocations returns every location row for an item.
func (r *Repo) FindLocations(ctx context.Context, db repository.DBTX, itemID uuid.UUID) ([]Location, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT item_id, variant, path FROM locations WHERE item_id = $1`, itemID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseFailure, "find locations", err)
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ItemID, &l.Variant, &l.Path); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseFailure, "scan location", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseFailure, "iterate locations", err)
	}
	return out, nil
}

// GetMedium fetches one medium owned by owner, or apperr.KindMediumNotFound.
func (r *Repo) GetMedium(ctx context.Context, db repository.DBTX, owner, id uuid.UUID) (*Medium, error) {
	m := &Medium{}
	err := db.QueryRowContext(ctx, `
		SELECT id, owner_id, medium_type, leading_item_id, album_id, deleted_at, created_at, updated_at
		FROM media WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`,
		id, owner,
	).Scan(&m.ID, &m.OwnerID, &m.MediumType, &m.LeadingItemID, &m.AlbumID, &m.DeletedAt, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.KindMediumNotFound, "medium not found", ErrMediumNotFound)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseFailure, "get medium", err)
	}
	return m, nil
}

// FindMedia pages through owner's media by (taken_at, id) cursor,
// joining medium_item_info through the leading item to get an
// orderable taken_at. per_page is clamped to [0, maxPerPage] per the
// boundary behavior in spec §8.
func (r *Repo) FindMedia(ctx context.Context, db repository.DBTX, owner uuid.UUID, f Filter) ([]Medium, error) {
	perPage := f.PerPage
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if perPage <= 0 {
		return nil, nil
	}

	dir := f.Direction
	if dir == "" {
		dir = DirectionDesc
	}
	cmp, order := "<", "DESC"
	if dir == DirectionAsc {
		cmp, order = ">", "ASC"
	}

	query := fmt.Sprintf(`
		SELECT m.id, m.owner_id, m.medium_type, m.leading_item_id, m.album_id, m.deleted_at, m.created_at, m.updated_at
		FROM media m
		JOIN medium_item_info info ON info.id = m.leading_item_id
		WHERE m.owner_id = $1 AND m.deleted_at IS NULL`)
	args := []interface{}{owner}
	n := 1

	if f.AlbumID != nil {
		n++
		query += fmt.Sprintf(" AND m.album_id = $%d", n)
		args = append(args, *f.AlbumID)
	}
	if f.Cursor.Set {
		query += fmt.Sprintf(" AND (info.taken_at, m.id) %s ($%d, $%d)", cmp, n+1, n+2)
		args = append(args, f.Cursor.TakenAt, f.Cursor.ID)
		n += 2
	}
	query += fmt.Sprintf(" ORDER BY info.taken_at %s, m.id %s LIMIT $%d", order, order, n+1)
	args = append(args, perPage)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseFailure, "find media", err)
	}
	defer rows.Close()

	var out []Medium
	for rows.Next() {
		var m Medium
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.MediumType, &m.LeadingItemID, &m.AlbumID, &m.DeletedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseFailure, "scan medium", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseFailure, "iterate media", err)
	}
	return out, nil
}

// FindItems returns every item belonging to medium, joined with its
// info and locations, for the Query Service's response shape.
func (r *Repo) FindItems(ctx context.Context, db repository.DBTX, mediumID uuid.UUID) ([]Full, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT i.id, i.medium_id, i.medium_item_type, i.mime, i.filename, i.extension, i.size, i.priority, i.last_saved, i.deleted_at,
		       info.taken_at, info.taken_at_timezone, info.camera_make, info.camera_model, info.width, info.height
		FROM medium_items i
		JOIN medium_item_info info ON info.id = i.id
		WHERE i.medium_id = $1 AND i.deleted_at IS NULL
		ORDER BY i.priority DESC`, mediumID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseFailure, "find medium items", err)
	}
	defer rows.Close()

	var out []Full
	for rows.Next() {
		var f Full
		if err := rows.Scan(
			&f.Item.ID, &f.Item.MediumID, &f.Item.Role, &f.Item.MIME, &f.Item.Filename, &f.Item.Extension,
			&f.Item.Size, &f.Item.Priority, &f.Item.LastSaved, &f.Item.DeletedAt,
			&f.Info.TakenAt, &f.Info.TakenAtTimezone, &f.Info.CameraMake, &f.Info.CameraModel, &f.Info.Width, &f.Info.Height,
		); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseFailure, "scan medium item", err)
		}
		f.Info.ID = f.Item.ID
		locs, err := r.FindLocations(ctx, db, f.Item.ID)
		if err != nil {
			return nil, err
		}
		f.Locations = locs
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseFailure, "iterate medium items", err)
	}
	return out, nil
}

func checkRowsAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseFailure, "rows affected for "+what, err)
	}
	if n == 0 {
		return apperr.New(apperr.KindDatabaseFailure, what+" row not found for update")
	}
	return nil
}
