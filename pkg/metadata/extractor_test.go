package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplyDropsSourceFileAndMapsFields(t *testing.T) {
	raw := `[{"SourceFile":"/tmp/x.jpg","DateTimeOriginal":{"desc":"Date/Time Original","val":"2023:08:16 08:58:15+02:00"},"Make":{"desc":"Make","val":"Apple"}}]`

	fields, err := parseReply(raw, false)
	require.NoError(t, err)
	assert.NotContains(t, fields, "SourceFile")
	require.Contains(t, fields, "DateTimeOriginal")
	assert.Equal(t, "2023:08:16 08:58:15+02:00", fields["DateTimeOriginal"].Value)
	assert.Equal(t, "Make", fields["Make"].Description)
}

func TestParseReplyWithGroupsSplitsGroupKey(t *testing.T) {
	raw := `[{"SourceFile":"/tmp/x.heic","EXIF:Image:Camera:EXIF":{"Make":{"desc":"Make","val":"Apple"}}}]`

	fields, err := parseReply(raw, true)
	require.NoError(t, err)
	require.Contains(t, fields, "Make")
	f := fields["Make"]
	assert.Equal(t, "EXIF", f.InformationType)
	assert.Equal(t, "Image", f.SpecificLocation)
	assert.Equal(t, "Camera", f.Category)
	assert.Equal(t, "EXIF", f.Format)
}

func TestParseReplyRejectsEmptyArray(t *testing.T) {
	_, err := parseReply(`[]`, false)
	assert.Error(t, err)
}

func TestParseReplyRejectsMalformedJSON(t *testing.T) {
	_, err := parseReply(`not json`, false)
	assert.Error(t, err)
}

func TestPartAt(t *testing.T) {
	parts := []string{"EXIF", "", "Camera"}
	assert.Equal(t, "EXIF", partAt(parts, 0))
	assert.Equal(t, "", partAt(parts, 1))
	assert.Equal(t, "Camera", partAt(parts, 2))
	assert.Equal(t, "", partAt(parts, 5))
}
