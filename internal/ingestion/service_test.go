package ingestion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainToTempUsesObservedSize(t *testing.T) {
	s := &Service{}
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "x.jpg")

	body := strings.NewReader("hello world")
	size, err := s.drainToTemp(path, body)
	require.NoError(t, err)
	assert.EqualValues(t, len("hello world"), size)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, size, info.Size())
}

func TestDrainToTempAcceptsZeroBytes(t *testing.T) {
	s := &Service{}
	path := filepath.Join(t.TempDir(), "empty.jpg")

	size, err := s.drainToTemp(path, strings.NewReader(""))
	require.NoError(t, err)
	assert.EqualValues(t, 0, size)
}

func TestSecondsEastOfUTC(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	got := secondsEastOfUTC(time.Date(2024, 6, 1, 12, 0, 0, 0, loc))
	assert.Equal(t, 7200, got)
}
