// ABOUTME: Worked-history administration: clear, retention extension, expiry sweep
// ABOUTME: Expiry is lazy on read plus a periodic sweep, never per-record timers

package coordinator

import (
	"context"
	"fmt"
	"time"
)

// ClearWorked deletes the entire worked history and returns how many
// records were removed.
func (c *Coordinator) ClearWorked(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.store.ClearWorked(ctx)
	if err != nil {
		return 0, fmt.Errorf("clearing worked history: %w", err)
	}

	c.logger.Info("worked history cleared", "removed", n)

	if err := c.publishWorkedLocked(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

// ExtendWorkedRetention pushes every record's expiry out by the given
// duration. This is the bulk admin action; individual records are never
// extended.
func (c *Coordinator) ExtendWorkedRetention(ctx context.Context, extension time.Duration) (int, error) {
	if extension <= 0 {
		return 0, fmt.Errorf("retention extension must be positive, got %s", extension)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.store.ExtendWorkedRetention(ctx, extension)
	if err != nil {
		return 0, fmt.Errorf("extending worked retention: %w", err)
	}

	c.logger.Info("worked retention extended", "extension", extension, "records", n)

	if err := c.publishWorkedLocked(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

// RunSweeper purges expired worked records on a fixed interval until ctx
// is cancelled. Reads already filter expired rows, so the sweep only
// reclaims storage; a broadcast goes out when anything was removed so
// viewers converge without waiting for the next write.
func (c *Coordinator) RunSweeper(ctx context.Context) {
	interval := c.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepExpired(ctx)
		}
	}
}

func (c *Coordinator) sweepExpired(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.store.PurgeExpiredWorked(ctx, c.now().UTC())
	if err != nil {
		c.logger.Error("sweeping expired worked records", "error", err)
		return
	}
	if n == 0 {
		return
	}

	c.logger.Debug("purged expired worked records", "count", n)

	if err := c.publishWorkedLocked(ctx); err != nil {
		c.logger.Error("publishing after sweep", "error", err)
	}
}
