package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultRetention     = time.Hour
	DefaultSweepInterval = 30 * time.Minute
)

// Sweeper periodically removes sessions older than the retention window.
type Sweeper struct {
	Registry  *Registry
	Retention time.Duration
	Interval  time.Duration
	Logger    *slog.Logger

	// OnExpired, if set, is called after each sweep that removed sessions.
	OnExpired func(ids []string)

	running sync.Mutex
}

// Run blocks until ctx is cancelled, sweeping once per Interval.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepNow()
		}
	}
}

// SweepNow performs a single sweep. If another sweep is still in progress it
// returns immediately without sweeping.
func (s *Sweeper) SweepNow() []string {
	if !s.running.TryLock() {
		return nil
	}
	defer s.running.Unlock()

	retention := s.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	start := time.Now()
	expired := s.Registry.SweepExpired(retention)
	if len(expired) == 0 {
		return nil
	}

	s.logger().Info("expired sessions swept",
		"count", len(expired),
		"remaining", s.Registry.Len(),
		"retention", retention,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if s.OnExpired != nil {
		s.OnExpired(expired)
	}
	return expired
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
