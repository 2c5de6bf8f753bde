package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drops registration flows idle since before cutoff
type Sweeper interface {
	Sweep(cutoff time.Time) int
}

// Cleaner handles periodic cleanup of abandoned registration flows
type Cleaner struct {
	flows    Sweeper
	interval time.Duration
	idleTTL  time.Duration
	now      func() time.Time
}

// NewCleaner creates a new cleanup worker
func NewCleaner(flows Sweeper, interval, idleTTL time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}

	return &Cleaner{
		flows:    flows,
		interval: interval,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

// run is the main loop for the cleanup worker
func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval, "idle_ttl", c.idleTTL)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes flows nobody has touched within the idle TTL
func (c *Cleaner) cleanup() int {
	slog.Debug("running cleanup cycle")

	removed := c.flows.Sweep(c.now().Add(-c.idleTTL))
	if removed == 0 {
		slog.Debug("no idle registrations found")
		return 0
	}

	slog.Info("idle registrations removed", "count", removed)
	return removed
}
