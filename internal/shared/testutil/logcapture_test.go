package testutil

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCapture(t *testing.T) {
	logger, logs := NewTestLogger(t)

	child := logger.With(slog.String("component", "archive"))
	child.Warn("skipping corrupt archive document", slog.String("id", "SP1/x"))
	logger.Info("archive index built", slog.Int("documents", 2))

	entries := logs.Entries()
	require.Len(t, entries, 2)

	warn := RequireLog(t, logs, slog.LevelWarn, "corrupt")
	assert.Equal(t, "archive", warn.Attrs["component"])
	assert.Equal(t, "SP1/x", warn.Attrs["id"])

	info := RequireLog(t, logs, slog.LevelInfo, "index built")
	assert.NotContains(t, info.Attrs, "component")
	assert.Equal(t, int64(2), info.Attrs["documents"])

	_, found := logs.Find(slog.LevelError, "corrupt")
	assert.False(t, found)
	assert.True(t, logs.ContainsMessage("index"))
}

func TestLogCapture_Concurrent(t *testing.T) {
	logger, logs := NewTestLogger(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.With(slog.Int("worker", n)).Info("file scored")
		}(i)
	}
	wg.Wait()

	assert.Len(t, logs.Entries(), 10)
}
