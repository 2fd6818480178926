package enrichment

import (
	"testing"

	"github.com/ovacore/photonic/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExifDateTime(t *testing.T) {
	tm, offset, err := parseExifDateTime("2023:08:16 08:58:15+02:00")
	require.NoError(t, err)
	assert.Equal(t, 7200, offset)
	assert.Equal(t, 2023, tm.Year())
	assert.Equal(t, 16, tm.Day())
}

func TestParseExifDateTimeRejectsMalformed(t *testing.T) {
	_, _, err := parseExifDateTime("not-a-date")
	assert.Error(t, err)
}

func TestBuildProposalFillsKnownFields(t *testing.T) {
	fields := map[string]metadata.Field{
		"DateTimeOriginal": {Value: "2023:08:16 08:58:15+02:00"},
		"Make":             {Value: "Apple"},
		"Model":            {Value: "iPhone 14 Pro"},
		"ImageWidth":       {Value: float64(4032)},
		"ImageHeight":      {Value: float64(3024)},
	}

	info := buildProposal(fields)
	require.NotNil(t, info.TakenAt)
	assert.Equal(t, 2023, info.TakenAt.Year())
	require.NotNil(t, info.CameraMake)
	assert.Equal(t, "Apple", *info.CameraMake)
	require.NotNil(t, info.Width)
	assert.Equal(t, 4032, *info.Width)
}

func TestBuildProposalLeavesMissingFieldsNil(t *testing.T) {
	info := buildProposal(map[string]metadata.Field{})
	assert.Nil(t, info.TakenAt)
	assert.Nil(t, info.CameraMake)
	assert.Nil(t, info.Width)
}
