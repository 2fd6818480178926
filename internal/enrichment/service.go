// Package enrichment implements the Enrichment Flow (C6): the state
// machine that, per MediumItemCreated, invokes the Metadata Extractor
// (C1), merges its output into MediumItemInfo, invokes Promotion (C7)
// and publishes MediumItemMoved. Grounded on spec §4.6's state table
// and §9's ordering rule (rename before the transaction that updates
// rows, never holding a transaction open across the child-process
// call). Fan-out bounding uses golang.org/x/sync/semaphore, grounded
// on the teacher's internal/nexus/service/patterns.go use of the same
// golang.org/x/sync module for pattern fan-out.
package enrichment

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ovacore/photonic/internal/apperr"
	"github.com/ovacore/photonic/internal/events"
	"github.com/ovacore/photonic/internal/metrics"
	"github.com/ovacore/photonic/internal/promotion"
	"github.com/ovacore/photonic/internal/repository"
	"github.com/ovacore/photonic/internal/repository/media"
	"github.com/ovacore/photonic/pkg/metadata"
	"github.com/ovacore/photonic/pkg/storage"
)

var tracer = otel.Tracer("photonic/enrichment")

// maxInFlight bounds concurrent enrichment tasks per subscriber (spec §4.6).
const maxInFlight = 4

// Service subscribes to MediumItemCreated and drives each item through
// the Received -> Extracted/Failed-Extract -> Promoted/Failed-Promote
// state machine.
type Service struct {
	db        *sql.DB
	log       *zap.Logger
	extractor *metadata.Extractor
	media     *media.Repo
	locator   *storage.Locator
	promotion *promotion.Service
	buses     *events.Buses
	sem       *semaphore.Weighted
}

func New(db *sql.DB, log *zap.Logger, extractor *metadata.Extractor, locator *storage.Locator, promotionSvc *promotion.Service, buses *events.Buses) *Service {
	return &Service{
		db:        db,
		log:       log,
		extractor: extractor,
		media:     media.New(),
		locator:   locator,
		promotion: promotionSvc,
		buses:     buses,
		sem:       semaphore.NewWeighted(maxInFlight),
	}
}

// Run subscribes to Created and processes events until ctx is done. On
// cancellation it stops accepting new events and waits for in-flight
// tasks to finish before returning (spec §4.6 "Cancellation").
func (s *Service) Run(ctx context.Context) {
	sub := s.buses.Created.Subscribe()
	defer sub.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		envelope, ok := sub.Recv(ctx)
		if !ok {
			return
		}
		if envelope.Gap > 0 && s.log != nil {
			s.log.Warn("enrichment subscriber missed events", zap.Int("gap", envelope.Gap))
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		wg.Add(1)
		ev := envelope.Payload
		go func() {
			defer wg.Done()
			defer s.sem.Release(1)
			s.handle(ctx, ev)
		}()
	}
}

// handle drives one item through the state machine. Task failures are
// logged and never propagated to the subscriber loop (spec §4.6:
// "individual task failures do not kill the subscriber").
func (s *Service) handle(ctx context.Context, ev events.MediumItemCreated) {
	ctx, span := tracer.Start(ctx, "enrichment.handle")
	span.SetAttributes(attribute.String("item.id", ev.ID.String()))
	defer span.End()

	tempPath, err := s.locator.Resolve(ev.Location)
	if err != nil {
		s.log.Error("enrichment cannot resolve temp location", zap.Error(err), zap.String("item", ev.ID.String()))
		metrics.EnrichmentTransitionsTotal.WithLabelValues("failed_extract").Inc()
		return
	}

	var proposal *media.Info
	fields, readErr := s.extractor.Read(ctx, tempPath, false, true)
	if readErr != nil {
		s.log.Warn("metadata extraction failed, proceeding with supplied fields only",
			zap.Error(readErr), zap.String("item", ev.ID.String()))
		metrics.EnrichmentTransitionsTotal.WithLabelValues("failed_extract").Inc()
	} else {
		proposal = buildProposal(fields)
		proposal.ID = ev.ID
		metrics.EnrichmentTransitionsTotal.WithLabelValues("extracted").Inc()
	}

	effectiveDate := ev.DateTaken
	if effectiveDate == nil && proposal != nil {
		effectiveDate = proposal.TakenAt
	}
	effectiveMake := ev.CameraMake
	if effectiveMake == nil && proposal != nil {
		effectiveMake = proposal.CameraMake
	}
	effectiveModel := ev.CameraModel
	if effectiveModel == nil && proposal != nil {
		effectiveModel = proposal.CameraModel
	}

	var date time.Time
	if effectiveDate != nil {
		date = *effectiveDate
	}

	result, promoteErr := s.promotion.Promote(ev.Location, storage.Options{
		Filename:    ev.Filename,
		Extension:   ev.Extension,
		User:        ev.UserID.String(),
		Date:        date,
		CameraMake:  effectiveMake,
		CameraModel: effectiveModel,
	})
	if promoteErr != nil {
		s.log.Warn("promotion failed, item remains in Temp",
			zap.Error(promoteErr), zap.String("item", ev.ID.String()))
		metrics.EnrichmentTransitionsTotal.WithLabelValues("failed_promote").Inc()
		span.RecordError(promoteErr)
		span.SetStatus(codes.Error, "promotion failed")
		return
	}

	txErr := repository.WithTransaction(ctx, s.db, s.log, func(tx *sql.Tx) error {
		if proposal != nil {
			if err := s.media.UpdateInfo(ctx, tx, proposal); err != nil {
				return err
			}
		}
		return s.media.MoveLocation(ctx, tx, ev.ID, ev.Location.Path, result.NewLocation)
	})
	if txErr != nil {
		if rbErr := s.promotion.Rollback(result); rbErr != nil {
			s.log.Error("reverse rename after failed commit also failed",
				zap.Error(rbErr), zap.NamedError("commit_error", txErr), zap.String("item", ev.ID.String()))
		} else {
			s.log.Warn("promotion commit failed, reversed rename",
				zap.Error(txErr), zap.String("item", ev.ID.String()))
		}
		metrics.EnrichmentTransitionsTotal.WithLabelValues("failed_promote").Inc()
		return
	}

	metrics.EnrichmentTransitionsTotal.WithLabelValues("promoted").Inc()
	s.buses.Moved.Publish(events.MediumItemMoved{ID: ev.ID, NewLocation: result.NewLocation})
}

// buildProposal translates the Metadata Extractor's output into an
// info-merge proposal (spec §4.4). Fields it cannot find or parse are
// left nil, which the info-merge rule's COALESCE treats as "propose
// nothing" for that column.
func buildProposal(fields map[string]metadata.Field) *media.Info {
	info := &media.Info{}

	if f, ok := fields["DateTimeOriginal"]; ok {
		if raw, ok := f.Value.(string); ok {
			if t, offset, err := parseExifDateTime(raw); err == nil {
				info.TakenAt = &t
				info.TakenAtTimezone = &offset
			}
		}
	}
	if f, ok := fields["Make"]; ok {
		if raw, ok := f.Value.(string); ok && raw != "" {
			info.CameraMake = &raw
		}
	}
	if f, ok := fields["Model"]; ok {
		if raw, ok := f.Value.(string); ok && raw != "" {
			info.CameraModel = &raw
		}
	}
	if f, ok := fields["ImageWidth"]; ok {
		if w, ok := intFromField(f.Value); ok {
			info.Width = &w
		}
	}
	if f, ok := fields["ImageHeight"]; ok {
		if h, ok := intFromField(f.Value); ok {
			info.Height = &h
		}
	}

	return info
}

func intFromField(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// parseExifDateTime parses the exiftool "YYYY:MM:DD HH:MM:SS(+-)HH:MM"
// format (e.g. "2023:08:16 08:58:15+02:00") into a time and its offset
// in seconds east of UTC.
func parseExifDateTime(raw string) (time.Time, int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), " ", 2)
	if len(parts) != 2 {
		return time.Time{}, 0, apperr.New(apperr.KindParseFailure, "malformed EXIF date/time: "+raw)
	}
	iso := strings.ReplaceAll(parts[0], ":", "-") + "T" + parts[1]
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Time{}, 0, apperr.Wrap(apperr.KindParseFailure, "parse EXIF date/time", err)
	}
	_, offset := t.Zone()
	return t, offset, nil
}
