package storage

import (
	"testing"
	"time"

	"github.com/ovacore/photonic/internal/repository/media"
	"github.com/stretchr/testify/assert"
)

const testPattern = "/<album_year>/<album>/<year><month><day>/<camera_make>_<camera_model>/<filename>_<hour><minute><second>.<extension>"

// TestToPathWithFullOptions mirrors the original implementation's
// path_from_options fixture (original_source/fotonic/src/store/save.rs).
func TestToPathWithFullOptions(t *testing.T) {
	loc := New(Config{Pattern: testPattern})

	album := "Album with space"
	cameraMake := "Sony Alpha"
	cameraModel := "A7S III"
	albumYear := 2022

	got := loc.ToPath(Options{
		Album:       &album,
		AlbumYear:   &albumYear,
		Date:        time.Date(2023, 2, 1, 8, 7, 6, 0, time.UTC),
		CameraMake:  &cameraMake,
		CameraModel: &cameraModel,
		Filename:    "DSC 123",
		Extension:   "jpg",
	})

	assert.Equal(t, "2022/Album with space/20230201/Sony_Alpha_A7S_III/DSC 123_080706.jpg", got)
}

// TestToPathWithMinimalOptions exercises the all-unset defaults. Unlike
// the Rust test fixture this is grounded on, it follows spec.md §4.2's
// own explicit words ("Unset fields default to Unknown (textual) or
// 1970-01-01T00:00:00+00:00 (date)") rather than the original
// fixture's literal "Unknown" substitution for numeric date
// components, which spec.md does not describe and which the Rust
// to_path implementation itself does not actually produce.
func TestToPathWithMinimalOptions(t *testing.T) {
	loc := New(Config{Pattern: testPattern})

	got := loc.ToPath(Options{
		Filename:  "DSC 123",
		Extension: "jpg",
	})

	assert.Equal(t, "1970/Unknown/19700101/Unknown_Unknown/DSC 123_000000.jpg", got)
}

func TestToPathStripsLeadingSlash(t *testing.T) {
	loc := New(Config{Pattern: "/<filename>.<extension>"})
	got := loc.ToPath(Options{Filename: "sun", Extension: "jpg"})
	assert.Equal(t, "sun.jpg", got)
}

func TestToPathSanitizesUser(t *testing.T) {
	loc := New(Config{Pattern: "<user>/<filename>.<extension>"})
	got := loc.ToPath(Options{Filename: "sun", Extension: "jpg", User: "jane doe/../etc"})
	assert.NotContains(t, got, "/../")
	assert.Equal(t, "jane_doe_.._etc/sun.jpg", got)
}

func TestResolveOriginalsDestinationRejectsEscape(t *testing.T) {
	loc := New(Config{
		Pattern: testPattern,
		Bases:   map[media.Variant]string{media.VariantOriginals: "/var/data/originals"},
	})

	_, err := loc.ResolveOriginalsDestination("../../etc/passwd")
	assert.Error(t, err)
}

func TestResolveOriginalsDestinationRequiresExtension(t *testing.T) {
	loc := New(Config{
		Pattern: testPattern,
		Bases:   map[media.Variant]string{media.VariantOriginals: "/var/data/originals"},
	})

	_, err := loc.ResolveOriginalsDestination("2024/Unknown/sun_noext")
	assert.Error(t, err)
}

func TestResolveOriginalsDestinationAccepts(t *testing.T) {
	loc := New(Config{
		Pattern: testPattern,
		Bases:   map[media.Variant]string{media.VariantOriginals: "/var/data/originals"},
	})

	got, err := loc.ResolveOriginalsDestination("2024/Unknown/0601/Unknown_Unknown/sun.jpg")
	assert.NoError(t, err)
	assert.Equal(t, "/var/data/originals/2024/Unknown/0601/Unknown_Unknown/sun.jpg", got)
}

func TestAllocateTempIsUniqueAndHasExtension(t *testing.T) {
	a := AllocateTemp("jpg")
	b := AllocateTemp("jpg")
	assert.Equal(t, media.VariantTemp, a.Variant)
	assert.NotEqual(t, a.Path, b.Path)
	assert.Contains(t, a.Path, ".jpg")
}
