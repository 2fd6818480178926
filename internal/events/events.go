// Package events defines the two event payload shapes the core
// publishes and consumes (spec §6) and constructs one eventbus.Bus per
// type, wiring C5/C6/C7 together without a shared dynamically-typed
// envelope.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/ovacore/photonic/internal/metrics"
	"github.com/ovacore/photonic/internal/repository/media"
	"github.com/ovacore/photonic/pkg/eventbus"
	"go.uber.org/zap"
)

// MediumItemCreated is published by Ingestion (C5) after its
// transaction commits.
type MediumItemCreated struct {
	ID          uuid.UUID
	MediumID    uuid.UUID
	MediumType  media.Type
	Location    media.Location
	Size        int64
	MIME        string
	Filename    string
	Extension   string
	UserID      uuid.UUID
	Priority    int
	DateTaken   *time.Time
	CameraMake  *string
	CameraModel *string
	DateAdded   time.Time
}

// MediumItemMoved is published by the Enrichment Flow (C6) once
// Promotion (C7) has moved the file and the transaction updating its
// Location row to Originals has committed.
type MediumItemMoved struct {
	ID          uuid.UUID
	NewLocation media.Location
}

// Buses bundles one Bus per topic actually exercised in this
// architecture. Per spec §9's own redesign guidance ("model the
// metadata child as a request-reply mailbox, not a second bus
// topic"), the Metadata Extractor's output (documented in spec §6 as
// the MediumItemExifLoaded envelope) is a synchronous return value
// consumed directly inside Enrichment Flow, never published — see
// internal/enrichment/service.go. There is likewise no operation in
// this system that mutates a medium's top-level fields after
// ingestion, so the MediumUpdated envelope spec §6 documents has no
// producer to wire; both envelope shapes are recorded for reference in
// DESIGN.md rather than carried here as unpublished bus topics.
type Buses struct {
	Created *eventbus.Bus[MediumItemCreated]
	Moved   *eventbus.Bus[MediumItemMoved]
}

// New constructs one bus per topic, sharing a logger so bus-level
// warnings (e.g. "publish with no subscribers") carry the same
// structured fields as the rest of the pipeline, and wires each bus's
// drop path into the eventbus_drops_total metric.
func New(log *zap.Logger) *Buses {
	created := eventbus.New[MediumItemCreated](log)
	created.OnDrop(func() { metrics.BusDropsTotal.WithLabelValues("medium_item_created").Inc() })

	moved := eventbus.New[MediumItemMoved](log)
	moved.OnDrop(func() { metrics.BusDropsTotal.WithLabelValues("medium_item_moved").Inc() })

	return &Buses{Created: created, Moved: moved}
}
