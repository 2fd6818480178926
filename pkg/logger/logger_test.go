package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	log, err := NewDefault()
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.NotNil(t, log.GetZapLogger())
	require.NoError(t, log.Sync())
}

func TestNewProductionConfig(t *testing.T) {
	log, err := New(ProductionConfig())
	require.NoError(t, err)
	require.NotNil(t, log)

	impl, ok := log.(*logger)
	require.True(t, ok)
	assert.True(t, impl.isProduction)
	assert.True(t, impl.config.EnableFiltering)
}

func TestWithAddsFields(t *testing.T) {
	log, err := NewDefault()
	require.NoError(t, err)

	child := log.With()
	assert.NotNil(t, child)
	assert.NotNil(t, child.GetZapLogger())
}

func TestIsCriticalMessageMatchesDomainConditions(t *testing.T) {
	log, err := New(ProductionConfig())
	require.NoError(t, err)
	impl := log.(*logger)

	critical := []string{
		"daily upload quota exceeded for user",
		"extractor restart after repeated exiftool crashes",
		"metadata extractor circuit open, rejecting requests",
		"promotion failed, rollback to Temp",
	}
	for _, msg := range critical {
		assert.True(t, impl.isCriticalMessage(msg), "expected %q to be critical", msg)
	}

	assert.False(t, impl.isCriticalMessage("handled upload request"))
}

func TestShouldLogFiltersRepeatedNonCriticalMessages(t *testing.T) {
	cfg := ProductionConfig()
	cfg.FilterInterval = 60_000 // large window so the test doesn't race the clock
	cfg.MaxSimilarLogs = 2

	log, err := New(cfg)
	require.NoError(t, err)
	impl := log.(*logger)

	const msg = "draining upload body"
	assert.True(t, impl.shouldLog(msg, "info"), "first occurrence always logs")
	assert.True(t, impl.shouldLog(msg, "info"), "second occurrence within MaxSimilarLogs logs")
	assert.False(t, impl.shouldLog(msg, "info"), "third occurrence within the interval is filtered")
}

func TestShouldLogAlwaysLogsCriticalMessages(t *testing.T) {
	cfg := ProductionConfig()
	cfg.FilterInterval = 60_000
	cfg.MaxSimilarLogs = 1

	log, err := New(cfg)
	require.NoError(t, err)
	impl := log.(*logger)

	const msg = "promotion failed, rollback to Temp"
	for i := 0; i < 5; i++ {
		assert.True(t, impl.shouldLog(msg, "error"), "critical messages bypass filtering")
	}
}

func TestCleanupFilterCacheRemovesStaleEntries(t *testing.T) {
	cfg := ProductionConfig()
	cfg.FilterInterval = 1 // 1ms, so the cutoff is immediately stale
	log, err := New(cfg)
	require.NoError(t, err)
	impl := log.(*logger)

	impl.shouldLog("draining upload body", "info")
	require.Len(t, impl.filterCache, 1)

	time.Sleep(5 * time.Millisecond)
	impl.CleanupFilterCache()
	assert.Empty(t, impl.filterCache)
}
