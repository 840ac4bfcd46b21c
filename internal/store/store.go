// ABOUTME: Store interface and data types for pileup-gateway persistence
// ABOUTME: Defines QueueEntry, Contact, WorkedContact, Settings and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateCallsign is returned when appending a callsign already in the queue
var ErrDuplicateCallsign = errors.New("callsign already queued")

// ContactOrigin records how a contact entered the current slot
type ContactOrigin string

const (
	// OriginFromQueue means the contact was promoted from the queue head
	OriginFromQueue ContactOrigin = "from-queue"
	// OriginDirectStart means an external bridge reported the contact already underway
	OriginDirectStart ContactOrigin = "direct-start"
)

// Profile holds optional enrichment metadata for a callsign.
// Error is set when the lookup failed; the entry stays usable either way.
type Profile struct {
	Name     string `json:"name,omitempty"`
	Country  string `json:"country,omitempty"`
	Grid     string `json:"grid,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// QueueEntry is a single waiting callsign. Position is derived on read,
// never stored.
type QueueEntry struct {
	Callsign string    `json:"callsign"`
	JoinedAt time.Time `json:"joined_at"`
	Profile  *Profile  `json:"profile,omitempty"`
}

// ChannelMeta carries optional frequency/mode tags reported with a
// direct-start contact.
type ChannelMeta struct {
	Frequency string `json:"frequency,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

// Contact is the singleton currently-active contact. At most one exists
// system-wide.
type Contact struct {
	Callsign  string        `json:"callsign"`
	StartedAt time.Time     `json:"started_at"`
	Profile   *Profile      `json:"profile,omitempty"`
	Origin    ContactOrigin `json:"origin"`
	Channel   *ChannelMeta  `json:"channel,omitempty"`
}

// WorkedContact is an archived completed contact. Immutable once created
// except for the bulk retention-extension admin action.
type WorkedContact struct {
	ID          string        `json:"id"`
	Callsign    string        `json:"callsign"`
	CompletedAt time.Time     `json:"completed_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Profile     *Profile      `json:"profile,omitempty"`
	Origin      ContactOrigin `json:"origin"`
	Interrupted bool          `json:"interrupted,omitempty"`
}

// Settings is the singleton mutable system configuration record
type Settings struct {
	Active             bool   `json:"active"`
	Frequency          string `json:"frequency,omitempty"`
	Split              string `json:"split,omitempty"`
	IntegrationEnabled bool   `json:"integration_enabled"`
}

// Store defines per-aggregate atomic persistence for the coordinator.
// The coordinator is the sole caller of mutating methods.
type Store interface {
	// Queue
	AppendQueueEntry(ctx context.Context, entry *QueueEntry) error
	RemoveQueueEntry(ctx context.Context, callsign string) (*QueueEntry, error)
	ListQueue(ctx context.Context) ([]*QueueEntry, error)
	ClearQueue(ctx context.Context) (int, error)
	UpdateQueueProfile(ctx context.Context, callsign string, profile *Profile) error

	// Current contact
	GetCurrent(ctx context.Context) (*Contact, error)
	SetCurrent(ctx context.Context, contact *Contact) error
	ClearCurrent(ctx context.Context) error
	UpdateCurrentProfile(ctx context.Context, callsign string, profile *Profile) error

	// Worked history
	AppendWorked(ctx context.Context, worked *WorkedContact) error
	ListWorked(ctx context.Context, now time.Time) ([]*WorkedContact, error)
	PurgeExpiredWorked(ctx context.Context, now time.Time) (int, error)
	ClearWorked(ctx context.Context) (int, error)
	ExtendWorkedRetention(ctx context.Context, extension time.Duration) (int, error)

	// Settings
	GetSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, settings *Settings) error

	Close() error
}
