// Package storage implements the Storage Locator (C2): deterministic
// destination paths from a pattern + fields, and resolution of a
// StorageLocation to an absolute path. Grounded on the original
// Rust store/save.rs's to_path token-replacement routine (see
// original_source/fotonic/src/store/save.rs), generalized with the
// <user> token and its filename-safe transform that spec.md adds to
// the closed token set, and on store/path.rs's temp-path allocation.
package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ovacore/photonic/internal/apperr"
	"github.com/ovacore/photonic/internal/repository/media"
)

// epoch is the date default spec.md §4.2 names for an unset
// date-taken: "1970-01-01T00:00:00+00:00".
var epoch = time.Unix(0, 0).UTC()

// unsafeFilenameChar matches anything outside the conservative
// filename-safe set; used to sanitize the <user> token.
var unsafeFilenameChar = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Config gives each storage variant its absolute base directory and
// names the pattern used to expand Originals destinations.
type Config struct {
	Bases   map[media.Variant]string
	Pattern string
}

// Locator computes destination paths and resolves StorageLocations to
// absolute filesystem paths. It holds no filesystem state itself —
// every method is a pure function of its Config and inputs, so path
// computation is unit-testable without touching a real filesystem
// (spec §4.2 groups this with the promotion algorithm, but the path
// math itself is kept separate and side-effect-free here).
type Locator struct {
	cfg Config
}

func New(cfg Config) *Locator {
	return &Locator{cfg: cfg}
}

// Options carries the closed token set spec.md §4.2 names:
// {filename, extension, user, year, month, day, hour, minute, second,
// camera_make, camera_model, album, album_year}.
type Options struct {
	Filename    string
	Extension   string
	User        string
	Date        time.Time // zero value maps to the epoch default
	CameraMake  *string
	CameraModel *string
	Album       *string
	AlbumYear   *int
}

// ToPath expands the configured pattern against opts, returning a
// path relative to a storage base (no leading slash). Token
// replacement order matches the original implementation's; none of
// the token literals are substrings of one another so order does not
// affect correctness, but is kept stable for readability.
func (l *Locator) ToPath(opts Options) string {
	result := l.cfg.Pattern

	date := opts.Date
	if date.IsZero() {
		date = epoch
	}

	album := "Unknown"
	if opts.Album != nil && *opts.Album != "" {
		album = *opts.Album
	}
	result = strings.ReplaceAll(result, "<album>", album)

	albumYear := date.Year()
	if opts.AlbumYear != nil {
		albumYear = *opts.AlbumYear
	}
	result = strings.ReplaceAll(result, "<album_year>", fmt.Sprintf("%04d", albumYear))

	result = strings.ReplaceAll(result, "<year>", fmt.Sprintf("%04d", date.Year()))
	result = strings.ReplaceAll(result, "<month>", fmt.Sprintf("%02d", int(date.Month())))
	result = strings.ReplaceAll(result, "<day>", fmt.Sprintf("%02d", date.Day()))
	result = strings.ReplaceAll(result, "<hour>", fmt.Sprintf("%02d", date.Hour()))
	result = strings.ReplaceAll(result, "<minute>", fmt.Sprintf("%02d", date.Minute()))
	result = strings.ReplaceAll(result, "<second>", fmt.Sprintf("%02d", date.Second()))

	cameraMake := "Unknown"
	if opts.CameraMake != nil && *opts.CameraMake != "" {
		cameraMake = *opts.CameraMake
	}
	result = strings.ReplaceAll(result, "<camera_make>", strings.ReplaceAll(cameraMake, " ", "_"))

	cameraModel := "Unknown"
	if opts.CameraModel != nil && *opts.CameraModel != "" {
		cameraModel = *opts.CameraModel
	}
	result = strings.ReplaceAll(result, "<camera_model>", strings.ReplaceAll(cameraModel, " ", "_"))

	user := "Unknown"
	if opts.User != "" {
		user = sanitizeUser(opts.User)
	}
	result = strings.ReplaceAll(result, "<user>", user)

	result = strings.ReplaceAll(result, "<filename>", opts.Filename)
	result = strings.ReplaceAll(result, "<extension>", opts.Extension)

	result = collapseSlashes(result)
	return strings.TrimPrefix(result, "/")
}

// sanitizeUser is the "filename-safe transform" spec.md adds for the
// <user> token: spaces become underscores (matching the camera
// make/model treatment) and anything else outside a conservative
// filename-safe set is replaced with an underscore too, so a display
// name can never inject a path separator or pattern syntax.
func sanitizeUser(user string) string {
	user = strings.ReplaceAll(user, " ", "_")
	return unsafeFilenameChar.ReplaceAllString(user, "_")
}

// collapseSlashes normalizes consecutive "/" before the
// canonical-descent check runs, per spec §8's boundary behavior for a
// pattern producing an empty segment.
func collapseSlashes(s string) string {
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	return s
}

// AllocateTemp returns a Location for staging a new upload: a
// random-uuid filename under the Temp variant, guaranteeing uniqueness
// without a filesystem check (spec §4.2).
func AllocateTemp(extension string) media.Location {
	return media.Location{
		Variant: media.VariantTemp,
		Path:    fmt.Sprintf("%s.%s", uuid.NewString(), extension),
	}
}

// Resolve joins a StorageLocation onto its variant's configured base,
// without any canonical-descent enforcement (that check only applies
// to the promotion destination, step 2 of §4.2 — arbitrary relative
// paths already recorded by the Persistence Layer are trusted).
func (l *Locator) Resolve(loc media.Location) (string, error) {
	base, ok := l.cfg.Bases[loc.Variant]
	if !ok {
		return "", apperr.New(apperr.KindStorageVariantNotFound, fmt.Sprintf("no base directory configured for variant %q", loc.Variant))
	}
	return filepath.Join(base, loc.Path), nil
}

// ResolveOriginalsDestination computes the absolute destination for a
// promotion target and enforces the two filesystem invariants from
// §4.2 steps 2-3: the result must canonically descend from the
// Originals base (defeating pattern-injection attacks via
// `OutsideBaseStorage`), and it must have a file extension
// (`NoFileExtension`).
func (l *Locator) ResolveOriginalsDestination(relPath string) (string, error) {
	base, ok := l.cfg.Bases[media.VariantOriginals]
	if !ok {
		return "", apperr.New(apperr.KindStorageVariantNotFound, "no base directory configured for variant \"originals\"")
	}

	destination := filepath.Clean(filepath.Join(base, relPath))
	cleanBase := filepath.Clean(base)
	if destination != cleanBase && !strings.HasPrefix(destination, cleanBase+string(filepath.Separator)) {
		return "", apperr.New(apperr.KindOutsideBaseStorage, fmt.Sprintf("destination %q escapes base storage %q", destination, cleanBase))
	}
	if filepath.Ext(destination) == "" {
		return "", apperr.New(apperr.KindNoFileExtension, fmt.Sprintf("destination %q has no file extension", destination))
	}
	return destination, nil
}
