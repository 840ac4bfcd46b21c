// ABOUTME: Coordinator owns all state transitions for queue, contact, history and settings
// ABOUTME: Serializes mutations behind one lock and publishes a typed event after every commit

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/pileup-gateway/internal/bus"
	"github.com/2389/pileup-gateway/internal/enrich"
	"github.com/2389/pileup-gateway/internal/store"
)

// enrichTimeout bounds a single profile lookup. Lookups run outside the
// coordinator lock, so this only caps how stale a patch event can be.
const enrichTimeout = 10 * time.Second

// Config carries the tunable coordinator values.
type Config struct {
	// QueueCapacity is the maximum number of waiting callsigns.
	QueueCapacity int
	// WorkedTTL is how long a completed contact stays in the history.
	WorkedTTL time.Duration
	// SweepInterval is how often RunSweeper purges expired history rows.
	SweepInterval time.Duration
}

// QueueEntryView is a queue entry with its derived 1-based position.
type QueueEntryView struct {
	Position int            `json:"position"`
	Callsign string         `json:"callsign"`
	JoinedAt time.Time      `json:"joined_at"`
	Profile  *store.Profile `json:"profile,omitempty"`
}

// QueuePayload is the full recomputed queue state carried by every
// queue_update event.
type QueuePayload struct {
	Entries []QueueEntryView `json:"entries"`
	Total   int              `json:"total"`
	MaxSize int              `json:"max_size"`
}

// WorkedPayload is the visible worked history carried by
// worked_callers_update events.
type WorkedPayload struct {
	Contacts []*store.WorkedContact `json:"contacts"`
	Total    int                    `json:"total"`
}

// DirectStartResult reports the outcome of a bridge-initiated contact.
type DirectStartResult struct {
	Contact     *store.Contact `json:"contact"`
	WasInQueue  bool           `json:"was_in_queue"`
	Interrupted *store.Contact `json:"interrupted,omitempty"`
}

// Snapshot is a consistent read of all four aggregates, used for initial
// page loads and client reconnects. It bypasses the event bus.
type Snapshot struct {
	Queue      QueuePayload           `json:"queue"`
	Current    *store.Contact         `json:"current"`
	Worked     []*store.WorkedContact `json:"worked"`
	Settings   *store.Settings        `json:"settings"`
	ServerTime time.Time              `json:"server_time"`
}

// Coordinator is the single writer for all pileup state. Every mutation
// happens inside one critical section, so cross-aggregate operations
// (SetActive, DirectStart) are atomic with respect to all other calls,
// and events are published in commit order.
type Coordinator struct {
	mu     sync.Mutex
	store  store.Store
	bus    *bus.Bus
	lookup enrich.Lookup
	cfg    Config
	logger *slog.Logger

	// now is the clock, injectable for tests.
	now func() time.Time
}

// New creates a Coordinator. Pass nil lookup to disable enrichment and
// nil logger for default.
func New(s store.Store, b *bus.Bus, lookup enrich.Lookup, cfg Config, logger *slog.Logger) *Coordinator {
	if lookup == nil {
		lookup = enrich.Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:  s,
		bus:    b,
		lookup: lookup,
		cfg:    cfg,
		logger: logger.With("component", "coordinator"),
		now:    time.Now,
	}
}

// Registration reports a successful queue join, with the 1-based
// position assigned inside the critical section.
type Registration struct {
	Entry    *store.QueueEntry
	Position int
}

// Register appends a callsign to the waiting queue. It rejects invalid
// formats, duplicates (queued or currently active), a full queue, and an
// inactive system. Enrichment is dispatched asynchronously; the
// queue_update event goes out immediately with a nil profile.
func (c *Coordinator) Register(ctx context.Context, rawCallsign string) (*Registration, error) {
	callsign := NormalizeCallsign(rawCallsign)
	if !ValidCallsign(callsign) {
		return nil, ErrInvalidFormat
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if !settings.Active {
		return nil, ErrSystemInactive
	}

	current, err := c.store.GetCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading current contact: %w", err)
	}
	if current != nil && current.Callsign == callsign {
		return nil, ErrDuplicateCallsign
	}

	entries, err := c.store.ListQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}
	if len(entries) >= c.cfg.QueueCapacity {
		return nil, ErrQueueFull
	}

	entry := &store.QueueEntry{
		Callsign: callsign,
		JoinedAt: c.now().UTC(),
	}
	if err := c.store.AppendQueueEntry(ctx, entry); err != nil {
		if errors.Is(err, store.ErrDuplicateCallsign) {
			return nil, ErrDuplicateCallsign
		}
		return nil, fmt.Errorf("appending queue entry: %w", err)
	}

	c.logger.Info("callsign registered", "callsign", callsign, "queue_len", len(entries)+1)

	if err := c.publishQueueLocked(ctx); err != nil {
		return nil, err
	}

	go c.enrichCallsign(callsign)

	return &Registration{Entry: entry, Position: len(entries) + 1}, nil
}

// Remove deletes a callsign from the queue. Returns store.ErrNotFound if
// it is not queued.
func (c *Coordinator) Remove(ctx context.Context, rawCallsign string) (*store.QueueEntry, error) {
	callsign := NormalizeCallsign(rawCallsign)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.store.RemoveQueueEntry(ctx, callsign)
	if err != nil {
		return nil, err
	}

	c.logger.Info("callsign removed from queue", "callsign", callsign)

	if err := c.publishQueueLocked(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// ClearQueue empties the queue and returns how many entries were removed.
func (c *Coordinator) ClearQueue(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearQueueLocked(ctx)
}

func (c *Coordinator) clearQueueLocked(ctx context.Context) (int, error) {
	n, err := c.store.ClearQueue(ctx)
	if err != nil {
		return 0, fmt.Errorf("clearing queue: %w", err)
	}

	c.logger.Info("queue cleared", "removed", n)

	if err := c.publishQueueLocked(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

// Queue returns the current queue with derived positions.
func (c *Coordinator) Queue(ctx context.Context) (QueuePayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queuePayloadLocked(ctx)
}

// Snapshot returns a consistent view of all aggregates. The lock makes
// the read atomic with respect to every mutation.
func (c *Coordinator) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	queue, err := c.queuePayloadLocked(ctx)
	if err != nil {
		return nil, err
	}
	current, err := c.store.GetCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading current contact: %w", err)
	}
	worked, err := c.store.ListWorked(ctx, c.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("reading worked history: %w", err)
	}
	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	return &Snapshot{
		Queue:      queue,
		Current:    current,
		Worked:     worked,
		Settings:   settings,
		ServerTime: c.now().UTC(),
	}, nil
}

// Current returns the active contact, or nil when idle.
func (c *Coordinator) Current(ctx context.Context) (*store.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.GetCurrent(ctx)
}

// Settings returns the system settings.
func (c *Coordinator) Settings(ctx context.Context) (*store.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.GetSettings(ctx)
}

// Worked returns the unexpired worked history, most recent first.
// Expiry is applied lazily on every read, so stale records disappear
// without waiting for the sweeper.
func (c *Coordinator) Worked(ctx context.Context) ([]*store.WorkedContact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ListWorked(ctx, c.now().UTC())
}

// enrichCallsign resolves a profile outside the critical section and
// patches it into whichever aggregate now holds the callsign. A lookup
// failure is recorded on the entry; it never undoes the registration.
func (c *Coordinator) enrichCallsign(callsign string) {
	ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
	defer cancel()

	profile, err := c.lookup.Lookup(ctx, callsign)
	if err != nil {
		c.logger.Warn("enrichment lookup failed", "callsign", callsign, "error", err)
		profile = &store.Profile{Error: err.Error()}
	}
	if profile == nil {
		return // enrichment disabled
	}

	c.applyProfile(ctx, callsign, profile)
}

// applyProfile merges a resolved profile and publishes the matching patch
// event. The callsign may have moved from the queue to the current slot
// (or left entirely) while the lookup ran.
func (c *Coordinator) applyProfile(ctx context.Context, callsign string, profile *store.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.UpdateQueueProfile(ctx, callsign, profile); err == nil {
		if err := c.publishQueueLocked(ctx); err != nil {
			c.logger.Error("publishing enriched queue", "error", err)
		}
		return
	}

	if err := c.store.UpdateCurrentProfile(ctx, callsign, profile); err == nil {
		current, err := c.store.GetCurrent(ctx)
		if err != nil {
			c.logger.Error("reading enriched contact", "error", err)
			return
		}
		c.publishLocked(bus.TypeCurrentQSO, current)
		return
	}

	// The callsign left the system before the lookup resolved
	c.logger.Debug("enrichment result discarded", "callsign", callsign)
}

// queuePayloadLocked builds the full queue payload with derived
// positions. Caller holds c.mu.
func (c *Coordinator) queuePayloadLocked(ctx context.Context) (QueuePayload, error) {
	entries, err := c.store.ListQueue(ctx)
	if err != nil {
		return QueuePayload{}, fmt.Errorf("reading queue: %w", err)
	}

	views := make([]QueueEntryView, len(entries))
	for i, e := range entries {
		views[i] = QueueEntryView{
			Position: i + 1,
			Callsign: e.Callsign,
			JoinedAt: e.JoinedAt,
			Profile:  e.Profile,
		}
	}
	return QueuePayload{
		Entries: views,
		Total:   len(views),
		MaxSize: c.cfg.QueueCapacity,
	}, nil
}

// publishQueueLocked publishes a queue_update with the full recomputed
// list. Caller holds c.mu.
func (c *Coordinator) publishQueueLocked(ctx context.Context) error {
	payload, err := c.queuePayloadLocked(ctx)
	if err != nil {
		return err
	}
	c.publishLocked(bus.TypeQueueUpdate, payload)
	return nil
}

// publishWorkedLocked publishes a worked_callers_update with the visible
// history. Caller holds c.mu.
func (c *Coordinator) publishWorkedLocked(ctx context.Context) error {
	worked, err := c.store.ListWorked(ctx, c.now().UTC())
	if err != nil {
		return fmt.Errorf("reading worked history: %w", err)
	}
	c.publishLocked(bus.TypeWorkedCallers, WorkedPayload{Contacts: worked, Total: len(worked)})
	return nil
}

// publishLocked publishes one event. Caller holds c.mu, which is what
// guarantees subscribers see events in commit order.
func (c *Coordinator) publishLocked(t bus.Type, data any) {
	c.bus.Publish(bus.Event{Type: t, Data: data, Timestamp: c.now().UTC()})
}
