// Package tag implements tag upsert and the medium_tags join the
// Ingestion Service populates from a request's declared tags.
//
// Open question resolved (spec §9: "whether tag inserts should
// deduplicate case-insensitively... the source is inconsistent
// between a tag-title join table and a tag-id join table"): this
// pipeline follows the tag-title join table named in spec §6
// (media_tags(medium_id, tag_title)) and deduplicates
// case-insensitively. The first-seen casing of a title wins and is
// what gets stored; a later upload tagging "Beach" after "beach" was
// already attached reuses the existing row rather than creating a
// second one. See DESIGN.md.
package tag

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/ovacore/photonic/internal/apperr"
	"github.com/ovacore/photonic/internal/repository"
)

type Repo struct{}

func New() *Repo { return &Repo{} }

// EnsureTags inserts any titles not already present (by
// lower(title)), preserving the first-seen casing.
func (r *Repo) EnsureTags(ctx context.Context, db repository.DBTX, titles []string) error {
	for _, title := range dedupeFold(titles) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO tags (id, title)
			SELECT $1, $2
			WHERE NOT EXISTS (SELECT 1 FROM tags WHERE lower(title) = lower($2))`,
			uuid.New(), title,
		)
		if err != nil {
			return apperr.Wrap(apperr.KindDatabaseFailure, "ensure tag", err)
		}
	}
	return nil
}

// Attach joins titles to medium, skipping a title already attached
// under any casing.
func (r *Repo) Attach(ctx context.Context, db repository.DBTX, mediumID uuid.UUID, titles []string) error {
	if err := r.EnsureTags(ctx, db, titles); err != nil {
		return err
	}
	for _, title := range dedupeFold(titles) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO media_tags (medium_id, tag_title)
			SELECT $1, title FROM tags WHERE lower(title) = lower($2)
			ON CONFLICT DO NOTHING`,
			mediumID, title,
		)
		if err != nil {
			return apperr.Wrap(apperr.KindDatabaseFailure, "attach tag", err)
		}
	}
	return nil
}

// dedupeFold collapses titles that differ only by case to their
// first-seen spelling, preserving input order.
func dedupeFold(titles []string) []string {
	seen := make(map[string]bool, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
