package operations

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker tracks progress for long-running operations
type ProgressTracker struct {
	Step      string
	Total     int
	Current   int
	StartTime time.Time
	Message   string
	mu        sync.Mutex
	now       func() time.Time
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(step string, total int) *ProgressTracker {
	return &ProgressTracker{
		Step:      step,
		Total:     total,
		StartTime: time.Now(),
		now:       time.Now,
	}
}

// Update updates the current progress
func (p *ProgressTracker) Update(current int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Current = current
	p.Message = message
}

// Increment increments the current progress by 1
func (p *ProgressTracker) Increment(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Current++
	p.Message = message
}

// GetProgress returns the current progress state
func (p *ProgressTracker) GetProgress() (current, total int, percentage float64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Total > 0 {
		percentage = float64(p.Current) / float64(p.Total) * 100
	}
	return p.Current, p.Total, percentage, p.Message
}

// Snapshot returns the state as a Progress value.
func (p *ProgressTracker) Snapshot() Progress {
	current, total, pct, msg := p.GetProgress()
	return Progress{Current: current, Total: total, Percent: pct, Message: msg, ETA: p.GetETA()}
}

// GetETA calculates the estimated time remaining
func (p *ProgressTracker) GetETA() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Current == 0 || p.Total == 0 {
		return "calculating..."
	}

	elapsed := p.now().Sub(p.StartTime)
	rate := float64(p.Current) / elapsed.Seconds()
	if rate == 0 {
		return "calculating..."
	}

	remaining := float64(p.Total-p.Current) / rate
	switch {
	case remaining < 60:
		return fmt.Sprintf("%.0f seconds", remaining)
	case remaining < 3600:
		return fmt.Sprintf("%.1f minutes", remaining/60)
	default:
		return fmt.Sprintf("%.1f hours", remaining/3600)
	}
}

// IsComplete returns true if the operation is complete
func (p *ProgressTracker) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.Current >= p.Total
}

// GetElapsedTime returns the elapsed time since start
func (p *ProgressTracker) GetElapsedTime() time.Duration {
	return p.now().Sub(p.StartTime)
}

// Progress is one progress report of a batch run.
type Progress struct {
	Current int
	Total   int
	Percent float64
	Message string
	ETA     string
	File    string
	Err     error
}

// ProgressFunc receives a report after each processed file.
type ProgressFunc func(Progress)
