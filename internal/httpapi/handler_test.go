package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionsRequiresFilenameAndExtension(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/medium?extension=jpg", nil)
	_, err := parseOptions(r)
	assert.Error(t, err)
}

func TestParseOptionsDefaultsPriority(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/medium?filename=sun&extension=jpg", nil)
	opts, err := parseOptions(r)
	require.NoError(t, err)
	assert.Equal(t, 10, opts.Priority)
}

func TestParseOptionsParsesDateTakenAndCamera(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/medium?filename=sun&extension=jpg&date_taken=2024-06-01T12:00:00%2B02:00&camera_make=Apple", nil)
	opts, err := parseOptions(r)
	require.NoError(t, err)
	require.NotNil(t, opts.DateTaken)
	assert.Equal(t, 2024, opts.DateTaken.Year())
	require.NotNil(t, opts.CameraMake)
	assert.Equal(t, "Apple", *opts.CameraMake)
}

func TestParseOptionsRejectsInvalidAlbumID(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/medium?filename=sun&extension=jpg&album_id=not-a-uuid", nil)
	_, err := parseOptions(r)
	assert.Error(t, err)
}
