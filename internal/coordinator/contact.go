// ABOUTME: Contact lifecycle transitions: promotion, direct-start, completion
// ABOUTME: Moves callsigns queue -> current slot -> worked history atomically

package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/2389/pileup-gateway/internal/bus"
	"github.com/2389/pileup-gateway/internal/store"
)

// PromoteNext pops the queue head into the current contact slot.
// Returns nil, nil when the queue is empty (not an error, to keep client
// polling simple) and ErrContactInProgress when a contact is already
// being worked. Publishes current_qso then queue_update.
func (c *Coordinator) PromoteNext(ctx context.Context) (*store.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.store.GetCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading current contact: %w", err)
	}
	if current != nil {
		return nil, ErrContactInProgress
	}

	entries, err := c.store.ListQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	head := entries[0]
	if _, err := c.store.RemoveQueueEntry(ctx, head.Callsign); err != nil {
		return nil, fmt.Errorf("removing queue head: %w", err)
	}

	contact := &store.Contact{
		Callsign:  head.Callsign,
		StartedAt: c.now().UTC(),
		Profile:   head.Profile,
		Origin:    store.OriginFromQueue,
	}
	if err := c.store.SetCurrent(ctx, contact); err != nil {
		return nil, fmt.Errorf("setting current contact: %w", err)
	}

	c.logger.Info("promoted queue head", "callsign", contact.Callsign)

	c.publishLocked(bus.TypeCurrentQSO, contact)
	if err := c.publishQueueLocked(ctx); err != nil {
		return nil, err
	}
	return contact, nil
}

// DirectStart installs a contact reported by an external bridge,
// bypassing the queue. A queued occurrence of the callsign is silently
// removed in the same atomic step; an already-active contact is archived
// as interrupted before the new one is installed (direct-start always
// wins). Publishes current_qso and, when the queue changed, queue_update.
func (c *Coordinator) DirectStart(ctx context.Context, rawCallsign string, meta *store.ChannelMeta) (*DirectStartResult, error) {
	callsign := NormalizeCallsign(rawCallsign)
	if !ValidCallsign(callsign) {
		return nil, ErrInvalidFormat
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var profile *store.Profile
	wasInQueue := false
	if removed, err := c.store.RemoveQueueEntry(ctx, callsign); err == nil {
		wasInQueue = true
		profile = removed.Profile
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("dequeuing callsign: %w", err)
	}

	prev, err := c.store.GetCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading current contact: %w", err)
	}

	var interrupted *store.Contact
	if prev != nil {
		if err := c.archiveLocked(ctx, prev, true); err != nil {
			return nil, err
		}
		interrupted = prev
		c.logger.Warn("interrupted active contact", "callsign", prev.Callsign, "by", callsign)
	}

	contact := &store.Contact{
		Callsign:  callsign,
		StartedAt: c.now().UTC(),
		Profile:   profile,
		Origin:    store.OriginDirectStart,
		Channel:   meta,
	}
	if err := c.store.SetCurrent(ctx, contact); err != nil {
		return nil, fmt.Errorf("setting current contact: %w", err)
	}

	c.logger.Info("direct-start contact installed",
		"callsign", callsign, "was_in_queue", wasInQueue)

	c.publishLocked(bus.TypeCurrentQSO, contact)
	if wasInQueue {
		if err := c.publishQueueLocked(ctx); err != nil {
			return nil, err
		}
	}
	if interrupted != nil {
		if err := c.publishWorkedLocked(ctx); err != nil {
			return nil, err
		}
	}

	if profile == nil {
		go c.enrichCallsign(callsign)
	}

	return &DirectStartResult{
		Contact:     contact,
		WasInQueue:  wasInQueue,
		Interrupted: interrupted,
	}, nil
}

// CompleteCurrent archives the active contact into the worked history and
// empties the slot. Returns ErrNothingActive when the slot is already
// empty, so callers can tell "already done" from "success". Publishes
// current_qso with a nil payload, then worked_callers_update.
func (c *Coordinator) CompleteCurrent(ctx context.Context) (*store.WorkedContact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.store.GetCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading current contact: %w", err)
	}
	if current == nil {
		return nil, ErrNothingActive
	}

	worked, err := c.completeLocked(ctx, current, false)
	if err != nil {
		return nil, err
	}

	c.logger.Info("contact completed", "callsign", worked.Callsign)

	c.publishLocked(bus.TypeCurrentQSO, nil)
	if err := c.publishWorkedLocked(ctx); err != nil {
		return nil, err
	}
	return worked, nil
}

// completeLocked archives a contact and clears the slot. Caller holds
// c.mu and publishes.
func (c *Coordinator) completeLocked(ctx context.Context, contact *store.Contact, interrupted bool) (*store.WorkedContact, error) {
	now := c.now().UTC()
	worked := &store.WorkedContact{
		ID:          uuid.New().String(),
		Callsign:    contact.Callsign,
		CompletedAt: now,
		ExpiresAt:   now.Add(c.cfg.WorkedTTL),
		Profile:     contact.Profile,
		Origin:      contact.Origin,
		Interrupted: interrupted,
	}
	if err := c.store.AppendWorked(ctx, worked); err != nil {
		return nil, fmt.Errorf("archiving contact: %w", err)
	}
	if err := c.store.ClearCurrent(ctx); err != nil {
		return nil, fmt.Errorf("clearing current contact: %w", err)
	}
	return worked, nil
}

// archiveLocked archives a contact, discarding the record; used by
// DirectStart and SetActive where the caller does not need it.
func (c *Coordinator) archiveLocked(ctx context.Context, contact *store.Contact, interrupted bool) error {
	_, err := c.completeLocked(ctx, contact, interrupted)
	return err
}
