// ABOUTME: System settings transitions: activation reset, frequency/split display, integration toggle
// ABOUTME: SetActive performs the cross-aggregate hard reset atomically

package coordinator

import (
	"context"
	"fmt"

	"github.com/2389/pileup-gateway/internal/bus"
	"github.com/2389/pileup-gateway/internal/store"
)

// FrequencyPayload carries a frequency_update event.
type FrequencyPayload struct {
	Frequency string `json:"frequency,omitempty"`
}

// SplitPayload carries a split_update event.
type SplitPayload struct {
	Split string `json:"split,omitempty"`
}

// SetActive flips the operational state. On either edge the queue is
// emptied and an active contact is archived as interrupted, so no stale
// registration survives the change. Events go out as system_status, then
// queue_update, then current_qso, in that fixed order.
func (c *Coordinator) SetActive(ctx context.Context, active bool) (*store.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	if settings.Active == active {
		// No edge, no reset; still confirm the state to subscribers
		c.publishLocked(bus.TypeSystemStatus, settings)
		return settings, nil
	}

	settings.Active = active
	if err := c.store.SaveSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("saving settings: %w", err)
	}

	current, err := c.store.GetCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading current contact: %w", err)
	}
	if current != nil {
		if err := c.archiveLocked(ctx, current, true); err != nil {
			return nil, err
		}
	}

	cleared, err := c.store.ClearQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("clearing queue: %w", err)
	}

	c.logger.Info("system state changed",
		"active", active, "queue_cleared", cleared, "contact_interrupted", current != nil)

	c.publishLocked(bus.TypeSystemStatus, settings)
	if err := c.publishQueueLocked(ctx); err != nil {
		return nil, err
	}
	c.publishLocked(bus.TypeCurrentQSO, nil)
	return settings, nil
}

// SetFrequency updates the frequency display string.
func (c *Coordinator) SetFrequency(ctx context.Context, frequency string) error {
	return c.updateSettings(ctx, func(s *store.Settings) (bus.Type, any) {
		s.Frequency = frequency
		return bus.TypeFrequency, FrequencyPayload{Frequency: frequency}
	})
}

// ClearFrequency removes the frequency display string.
func (c *Coordinator) ClearFrequency(ctx context.Context) error {
	return c.SetFrequency(ctx, "")
}

// SetSplit updates the split display string.
func (c *Coordinator) SetSplit(ctx context.Context, split string) error {
	return c.updateSettings(ctx, func(s *store.Settings) (bus.Type, any) {
		s.Split = split
		return bus.TypeSplit, SplitPayload{Split: split}
	})
}

// ClearSplit removes the split display string.
func (c *Coordinator) ClearSplit(ctx context.Context) error {
	return c.SetSplit(ctx, "")
}

// SetIntegration toggles the logging-software bridge flag.
func (c *Coordinator) SetIntegration(ctx context.Context, enabled bool) error {
	return c.updateSettings(ctx, func(s *store.Settings) (bus.Type, any) {
		s.IntegrationEnabled = enabled
		return bus.TypeSystemStatus, s
	})
}

// updateSettings applies a single-field mutation and publishes the event
// the mutator chose. No cross-aggregate effects.
func (c *Coordinator) updateSettings(ctx context.Context, mutate func(*store.Settings) (bus.Type, any)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}

	eventType, payload := mutate(settings)
	if err := c.store.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}

	c.publishLocked(eventType, payload)
	return nil
}
