package operations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tr := NewProgressTracker("batch", 4)
	tr.StartTime = start
	tr.now = func() time.Time { return start.Add(10 * time.Second) }

	assert.Equal(t, "calculating...", tr.GetETA())
	assert.False(t, tr.IsComplete())

	tr.Increment("one")
	current, total, pct, msg := tr.GetProgress()
	assert.Equal(t, 1, current)
	assert.Equal(t, 4, total)
	assert.Equal(t, 25.0, pct)
	assert.Equal(t, "one", msg)
	assert.Equal(t, "30 seconds", tr.GetETA())
	assert.Equal(t, 10*time.Second, tr.GetElapsedTime())

	tr.Update(4, "done")
	snap := tr.Snapshot()
	assert.Equal(t, Progress{Current: 4, Total: 4, Percent: 100, Message: "done", ETA: "0 seconds"}, snap)
	assert.True(t, tr.IsComplete())
}

func TestProgressTracker_ETAUnits(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		elapsed time.Duration
		want    string
	}{
		{"minutes", 2 * time.Minute, "6.0 minutes"},
		{"hours", time.Hour, "3.0 hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewProgressTracker("batch", 4)
			tr.StartTime = start
			tr.now = func() time.Time { return start.Add(tt.elapsed) }
			tr.Update(1, "")
			assert.Equal(t, tt.want, tr.GetETA())
		})
	}
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	tr := NewProgressTracker("batch", 0)
	_, _, pct, _ := tr.GetProgress()
	assert.Equal(t, 0.0, pct)
	assert.True(t, tr.IsComplete())
}
