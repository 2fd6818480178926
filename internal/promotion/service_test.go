package promotion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/ovacore/photonic/internal/apperr"
	"github.com/ovacore/photonic/internal/repository/media"
	"github.com/ovacore/photonic/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocatorForTest(t *testing.T) (*storage.Locator, string) {
	t.Helper()
	root := t.TempDir()
	originals := filepath.Join(root, "originals")
	temp := filepath.Join(root, "temp")
	require.NoError(t, os.MkdirAll(originals, 0o755))
	require.NoError(t, os.MkdirAll(temp, 0o755))

	loc := storage.New(storage.Config{
		Pattern: "/<filename>.<extension>",
		Bases: map[media.Variant]string{
			media.VariantOriginals: originals,
			media.VariantTemp:      temp,
		},
	})
	return loc, temp
}

func writeTempFile(t *testing.T, tempDir, name, contents string) media.Location {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, name), []byte(contents), 0o644))
	return media.Location{ItemID: uuid.New(), Variant: media.VariantTemp, Path: name}
}

func TestPromoteMovesFileAndReturnsOriginalsLocation(t *testing.T) {
	loc, tempDir := newLocatorForTest(t)
	svc := New(loc)
	tempLoc := writeTempFile(t, tempDir, "abc.jpg", "bytes")

	result, err := svc.Promote(tempLoc, storage.Options{Filename: "sun", Extension: "jpg"})
	require.NoError(t, err)
	assert.Equal(t, media.VariantOriginals, result.NewLocation.Variant)
	assert.Equal(t, "sun.jpg", result.NewLocation.Path)

	_, err = os.Stat(filepath.Join(tempDir, "abc.jpg"))
	assert.True(t, os.IsNotExist(err))

	abs, err := loc.Resolve(result.NewLocation)
	require.NoError(t, err)
	contents, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(contents))
}

func TestPromoteRejectsExistingDestination(t *testing.T) {
	loc, tempDir := newLocatorForTest(t)
	svc := New(loc)

	first := writeTempFile(t, tempDir, "first.jpg", "one")
	_, err := svc.Promote(first, storage.Options{Filename: "dup", Extension: "jpg"})
	require.NoError(t, err)

	second := writeTempFile(t, tempDir, "second.jpg", "two")
	_, err = svc.Promote(second, storage.Options{Filename: "dup", Extension: "jpg"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindFileAlreadyExists, apperr.KindOf(err))

	_, err = os.Stat(filepath.Join(tempDir, "second.jpg"))
	assert.NoError(t, err, "second temp file must remain in place")
}

func TestRollbackMovesFileBackToTemp(t *testing.T) {
	loc, tempDir := newLocatorForTest(t)
	svc := New(loc)
	tempLoc := writeTempFile(t, tempDir, "abc.jpg", "bytes")

	result, err := svc.Promote(tempLoc, storage.Options{Filename: "sun", Extension: "jpg"})
	require.NoError(t, err)

	require.NoError(t, svc.Rollback(result))

	_, err = os.Stat(filepath.Join(tempDir, "abc.jpg"))
	assert.NoError(t, err)
}
