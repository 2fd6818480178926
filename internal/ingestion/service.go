// Package ingestion implements the Ingestion Service (C5): the single
// entry point per upload, draining a byte stream to a temp location,
// enforcing quota, writing the Medium/MediumItem/MediumItemInfo/
// Location rows in one transaction, and publishing MediumItemCreated
// post-commit. Grounded on spec §4.5's numbered protocol and on the
// teacher's internal/service/media/media.go service-constructor shape
// (a service struct bundling its repo collaborators and its bus).
package ingestion

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/open-feature/go-sdk/openfeature"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ovacore/photonic/internal/apperr"
	"github.com/ovacore/photonic/internal/events"
	"github.com/ovacore/photonic/internal/metrics"
	"github.com/ovacore/photonic/internal/repository"
	"github.com/ovacore/photonic/internal/repository/album"
	"github.com/ovacore/photonic/internal/repository/media"
	"github.com/ovacore/photonic/internal/repository/tag"
	"github.com/ovacore/photonic/internal/repository/user"
	"github.com/ovacore/photonic/pkg/storage"
)

var tracer = otel.Tracer("photonic/ingestion")

// secondPassQuotaCheckFlag is the Open Question 1 decision: a
// runtime-togglable recheck of quota after the observed size is known,
// default off. See DESIGN.md.
const secondPassQuotaCheckFlag = "ingestion.secondPassQuotaCheck"

// Identity is the authenticated trust-context the HTTP collaborator
// resolves before calling Upload; OAuth/JWT verification itself is out
// of scope (spec §1).
type Identity struct {
	ID       uuid.UUID
	Username string
	Email    string
	Quota    int64
}

// Options carries the declared medium/medium-item fields a caller
// supplies on an upload (spec §4.5, §6 query parameters).
type Options struct {
	Filename    string
	Extension   string
	Priority    int
	Tags        []string
	MediumType  *media.Type
	AlbumID     *uuid.UUID
	DateTaken   *time.Time
	CameraMake  *string
	CameraModel *string
}

// Service is the C5 entry point. It owns no file or DB state itself;
// every dependency is passed in explicitly at construction, per spec
// §9's "pass as explicit context references" guidance.
type Service struct {
	db      *sql.DB
	log     *zap.Logger
	media   *media.Repo
	users   *user.Repo
	albums  *album.Repo
	tags    *tag.Repo
	locator *storage.Locator
	buses   *events.Buses
	flags   *openfeature.Client
}

// New constructs the Ingestion Service.
func New(db *sql.DB, log *zap.Logger, locator *storage.Locator, buses *events.Buses) *Service {
	return &Service{
		db:      db,
		log:     log,
		media:   media.New(),
		users:   user.New(),
		albums:  album.New(),
		tags:    tag.New(),
		locator: locator,
		buses:   buses,
		flags:   openfeature.NewClient("photonic-ingestion"),
	}
}

// Upload drives spec §4.5's eleven-step protocol. It returns the new
// Medium's id on success.
func (s *Service) Upload(ctx context.Context, identity Identity, declaredSize int64, mime string, body io.Reader, opts Options) (uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "ingestion.Upload")
	defer span.End()

	itemID := uuid.New()
	mediumID := uuid.New()
	tempLoc := storage.AllocateTemp(opts.Extension)
	tempLoc.ItemID = itemID

	tempPath, err := s.locator.Resolve(tempLoc)
	if err != nil {
		return uuid.Nil, err
	}

	var observedSize int64
	var mediumType media.Type
	err = repository.WithTransaction(ctx, s.db, s.log, func(tx *sql.Tx) error {
		if err := s.users.Upsert(ctx, tx, &user.User{
			ID:       identity.ID,
			Username: identity.Username,
			Email:    identity.Email,
			Quota:    identity.Quota,
		}); err != nil {
			return err
		}

		u, err := s.users.Get(ctx, tx, identity.ID)
		if err != nil {
			return err
		}
		if u.QuotaUsed+declaredSize > u.Quota {
			return apperr.New(apperr.KindQuotaExceeded, "declared size would exceed quota")
		}

		if opts.AlbumID != nil {
			if err := s.albums.Exists(ctx, tx, identity.ID, *opts.AlbumID); err != nil {
				return err
			}
		}

		size, err := s.drainToTemp(tempPath, body)
		if err != nil {
			return err
		}
		observedSize = size

		if mime == "" && size == 0 {
			_ = os.Remove(tempPath)
			return apperr.New(apperr.KindParseFailure, "no MIME type declared for an empty upload")
		}

		if s.secondPassQuotaCheckEnabled(ctx, identity.Username) && u.QuotaUsed+size > u.Quota {
			_ = os.Remove(tempPath)
			return apperr.New(apperr.KindQuotaExceeded, "observed size would exceed quota")
		}

		mediumType = media.TypeFromMIME(mime)
		if opts.MediumType != nil {
			mediumType = *opts.MediumType
		}

		now := time.Now()
		if err := s.media.CreateMedium(ctx, tx, &media.Medium{
			ID:            mediumID,
			OwnerID:       identity.ID,
			MediumType:    mediumType,
			LeadingItemID: itemID,
			AlbumID:       opts.AlbumID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}); err != nil {
			return err
		}

		if err := s.media.CreateItem(ctx, tx, &media.Item{
			ID:        itemID,
			MediumID:  mediumID,
			Role:      media.RoleOriginal,
			MIME:      mime,
			Filename:  opts.Filename,
			Extension: opts.Extension,
			Size:      size,
			Priority:  opts.Priority,
			LastSaved: now,
		}); err != nil {
			return err
		}

		var tz *int
		if opts.DateTaken != nil {
			offset := secondsEastOfUTC(*opts.DateTaken)
			tz = &offset
		}
		if err := s.media.CreateInfo(ctx, tx, &media.Info{
			ID:              itemID,
			TakenAt:         opts.DateTaken,
			TakenAtTimezone: tz,
			CameraMake:      opts.CameraMake,
			CameraModel:     opts.CameraModel,
		}); err != nil {
			return err
		}

		if err := s.media.AddLocation(ctx, tx, &media.Location{
			ItemID:  itemID,
			Variant: tempLoc.Variant,
			Path:    tempLoc.Path,
		}); err != nil {
			return err
		}

		if len(opts.Tags) > 0 {
			if err := s.tags.Attach(ctx, tx, mediumID, opts.Tags); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(string(apperr.KindOf(err))).Inc()
		return uuid.Nil, err
	}

	metrics.UploadsTotal.WithLabelValues("committed").Inc()
	metrics.UploadBytes.Observe(float64(observedSize))

	s.buses.Created.Publish(events.MediumItemCreated{
		ID:          itemID,
		MediumID:    mediumID,
		MediumType:  mediumType,
		Location:    tempLoc,
		Size:        observedSize,
		MIME:        mime,
		Filename:    opts.Filename,
		Extension:   opts.Extension,
		UserID:      identity.ID,
		Priority:    opts.Priority,
		DateTaken:   opts.DateTaken,
		CameraMake:  opts.CameraMake,
		CameraModel: opts.CameraModel,
		DateAdded:   time.Now(),
	})

	return mediumID, nil
}

// drainToTemp writes body to path, returning the observed size from
// stat rather than any declared length (spec §4.5 steps 5-6: "Measure
// the written size with stat; use that size, not the declared one").
// On I/O failure the partial file is removed.
func (s *Service) drainToTemp(path string, body io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, apperr.Wrap(apperr.KindIoFailure, "create temp directory", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindIoFailure, "create temp file", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return 0, apperr.Wrap(apperr.KindIoFailure, "write temp file", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return 0, apperr.Wrap(apperr.KindIoFailure, "close temp file", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindIoFailure, "stat temp file", err)
	}
	return info.Size(), nil
}

// secondPassQuotaCheckEnabled resolves the Open Question 1 feature
// flag for this user, defaulting to false on any evaluation error.
func (s *Service) secondPassQuotaCheckEnabled(ctx context.Context, userKey string) bool {
	evalCtx := openfeature.NewEvaluationContext(userKey, map[string]interface{}{})
	enabled, err := s.flags.BooleanValue(ctx, secondPassQuotaCheckFlag, false, evalCtx)
	if err != nil {
		return false
	}
	return enabled
}

func secondsEastOfUTC(t time.Time) int {
	_, offset := t.Zone()
	return offset
}
