// Package query implements the Query Service (C8): read-only joins
// that combine find_media with per-row find_medium_items and
// per-item find_locations (spec §4.7). An optional Redis cache sits
// in front of the read path only — it is never the system of record
// and is invalidated whenever Ingestion or Promotion publish, per
// SPEC_FULL.md §9's domain stack table.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovacore/photonic/internal/events"
	"github.com/ovacore/photonic/internal/repository/media"
	rediscache "github.com/ovacore/photonic/pkg/redis"
)

// cacheTTL bounds how long a stale listing can be served after an
// invalidation is missed (belt-and-braces on top of the version bump).
const cacheTTL = 30 * time.Second

// View is one Medium together with its items, the response shape
// spec §4.7 asks for.
type View struct {
	Medium media.Medium
	Items  []media.Full
}

// Service answers read queries. It never writes to media tables.
type Service struct {
	db    *sql.DB
	media *media.Repo
	cache *rediscache.Cache
	log   *zap.Logger
}

// New constructs the Query Service. cache may be nil, in which case
// every call reads straight through to the database.
func New(db *sql.DB, cache *rediscache.Cache, log *zap.Logger) *Service {
	return &Service{db: db, media: media.New(), cache: cache, log: log}
}

// ListMedia pages through owner's media (spec §4.4 find_media) and
// joins each row's items, trying the cache first when one is
// configured.
func (s *Service) ListMedia(ctx context.Context, owner uuid.UUID, filter media.Filter) ([]View, error) {
	key := s.cacheKey(ctx, owner, filter)
	if key != "" {
		if cached, ok := s.readCache(ctx, key); ok {
			return cached, nil
		}
	}

	rows, err := s.media.FindMedia(ctx, s.db, owner, filter)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(rows))
	for _, m := range rows {
		items, err := s.media.FindItems(ctx, s.db, m.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, View{Medium: m, Items: items})
	}

	if key != "" {
		s.writeCache(ctx, key, views)
	}
	return views, nil
}

// GetMedium fetches one medium (spec §4.4 get_medium) together with
// its items. Not cached: single-item lookups are cheap and the cache
// versioning scheme is keyed for list pages.
func (s *Service) GetMedium(ctx context.Context, owner, id uuid.UUID) (*View, error) {
	m, err := s.media.GetMedium(ctx, s.db, owner, id)
	if err != nil {
		return nil, err
	}
	items, err := s.media.FindItems(ctx, s.db, m.ID)
	if err != nil {
		return nil, err
	}
	return &View{Medium: *m, Items: items}, nil
}

// RunCacheInvalidation subscribes to Created and Moved and bumps the
// global cache version on each, until ctx is done. A single version
// counter (rather than a per-owner or per-medium key) keeps the
// invalidation scheme simple at the cost of invalidating more than
// strictly necessary on every write — acceptable given listings are
// cheap joins and the cache's only job is to absorb read bursts, not
// to be a system of record.
func (s *Service) RunCacheInvalidation(ctx context.Context, buses *events.Buses) {
	if s.cache == nil {
		return
	}

	created := buses.Created.Subscribe()
	moved := buses.Moved.Subscribe()
	defer created.Close()
	defer moved.Close()

	go func() {
		for {
			if _, ok := created.Recv(ctx); !ok {
				return
			}
			s.bumpVersion(ctx)
		}
	}()
	for {
		if _, ok := moved.Recv(ctx); !ok {
			return
		}
		s.bumpVersion(ctx)
	}
}

const versionKey = "query:version"

func (s *Service) bumpVersion(ctx context.Context) {
	if err := s.cache.Incr(ctx, versionKey); err != nil && s.log != nil {
		s.log.Warn("cache version bump failed", zap.Error(err))
	}
}

func (s *Service) cacheKey(ctx context.Context, owner uuid.UUID, filter media.Filter) string {
	if s.cache == nil {
		return ""
	}
	version := s.cache.Version(ctx, versionKey)
	album := "any"
	if filter.AlbumID != nil {
		album = filter.AlbumID.String()
	}
	return s.cache.Keys().Build("list", fmt.Sprintf("%s:%s:%s:%s:%v:%d:%s:%d",
		version, owner, album, filter.Direction, filter.Cursor.Set, filter.Cursor.TakenAt.UnixNano(), filter.Cursor.ID, filter.PerPage))
}

func (s *Service) readCache(ctx context.Context, key string) ([]View, bool) {
	var views []View
	if !s.cache.Get(ctx, key, &views) {
		return nil, false
	}
	return views, true
}

func (s *Service) writeCache(ctx context.Context, key string, views []View) {
	if err := s.cache.Set(ctx, key, views, cacheTTL); err != nil && s.log != nil {
		s.log.Warn("cache write failed", zap.Error(err))
	}
}
