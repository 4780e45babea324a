package profiler

import (
	"time"

	"github.com/go-logr/logr"
)

// ProfilerOption is a functional option for configuring a Profiler.
type ProfilerOption func(*Profiler)

// WithLogger sets the logger stats are reported to.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - ProfilerOption: option function to apply
func WithLogger(logger logr.Logger) ProfilerOption {
	return func(p *Profiler) {
		p.logger = logger.WithName("profiler")
	}
}

// WithUpdateInterval sets how often stats are reported.
//
// Parameters:
//   - interval: the reporting interval
//
// Returns:
//   - ProfilerOption: option function to apply
func WithUpdateInterval(interval time.Duration) ProfilerOption {
	return func(p *Profiler) {
		p.updateInterval = interval
	}
}

// WithClock replaces time.Now as the profiler's time source.
//
// Parameters:
//   - now: the clock function
//
// Returns:
//   - ProfilerOption: option function to apply
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		p.now = now
	}
}
