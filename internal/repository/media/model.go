// Package media implements the Persistence Layer's (C4) medium,
// medium_item, medium_item_info and location tables: transactional
// create/read operations grounded on the teacher's
// internal/service/media/repo.go raw-SQL style, adapted from the
// teacher's asset-metadata shape to the ingestion pipeline's own
// entities.
package media

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a Medium the way the ingestion HTTP contract and
// MIME-inference rule name it.
type Type string

const (
	TypePhoto     Type = "photo"
	TypeVideo     Type = "video"
	TypeLivePhoto Type = "live_photo"
	TypeVector    Type = "vector"
	TypeSequence  Type = "sequence"
	TypeGif       Type = "gif"
	TypeOther     Type = "other"
)

// TypeFromMIME infers a Medium's type from a declared content type,
// falling back to Other. SVG is special-cased to Vector ahead of the
// generic image/* branch; GIF ahead of the generic image/* branch.
func TypeFromMIME(mime string) Type {
	switch {
	case mime == "image/svg+xml":
		return TypeVector
	case mime == "image/gif":
		return TypeGif
	case len(mime) >= 6 && mime[:6] == "image/":
		return TypePhoto
	case len(mime) >= 6 && mime[:6] == "video/":
		return TypeVideo
	default:
		return TypeOther
	}
}

// Role classifies a MediumItem's relationship to its Medium.
type Role string

const (
	RoleOriginal Role = "original"
	RoleEdit     Role = "edit"
	RolePreview  Role = "preview"
	RoleSidecar  Role = "sidecar"
)

// Variant names a configured storage base.
type Variant string

const (
	VariantOriginals Variant = "originals"
	VariantCache     Variant = "cache"
	VariantTemp      Variant = "temp"
)

// Medium is the logical asset a user uploads: one or more MediumItems
// (original, edits, previews, sidecars) grouped under one owner.
type Medium struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	MediumType    Type
	LeadingItemID uuid.UUID
	AlbumID       *uuid.UUID
	DeletedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is a concrete file belonging to a Medium.
type Item struct {
	ID        uuid.UUID
	MediumID  uuid.UUID
	Role      Role
	MIME      string
	Filename  string
	Extension string
	Size      int64
	Priority  int
	LastSaved time.Time
	DeletedAt *time.Time
}

// Info is the one-to-one enrichment record for an Item: its id is
// both its primary key and its foreign key to Item.ID. Pointer fields
// are "unset" sentinels: the info-merge rule (spec §4.4) only ever
// fills a nil field, never overwrites a present one.
type Info struct {
	ID              uuid.UUID
	TakenAt         *time.Time
	TakenAtTimezone *int // seconds east of UTC
	CameraMake      *string
	CameraModel     *string
	Width           *int
	Height          *int
}

// Location is the pair (storage variant, relative path) locating an
// Item's bytes. A MediumItem always has at least one Location row;
// promotion mutates the one that started as Temp in place.
type Location struct {
	ItemID uuid.UUID
	Variant Variant
	Path    string
}

// Full is the C8 Query Service's join shape: an Item together with its
// Info and every Location it currently has.
type Full struct {
	Item      Item
	Info      Info
	Locations []Location
}

// Cursor is the (taken_at, id) pagination key find_media uses. A zero
// Cursor selects the first page.
type Cursor struct {
	TakenAt time.Time
	ID      uuid.UUID
	Set     bool
}

// Direction orders a find_media page.
type Direction string

const (
	DirectionAsc  Direction = "asc"
	DirectionDesc Direction = "desc"
)

// Filter narrows find_media to an album and/or pages by Cursor.
type Filter struct {
	AlbumID  *uuid.UUID
	Cursor   Cursor
	Direction Direction
	PerPage  int
}
