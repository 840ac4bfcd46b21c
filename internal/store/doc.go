// Package store provides persistent storage for pileup-gateway using SQLite.
//
// # Aggregates
//
// The store holds four aggregates, each with its own atomic operations:
//
//   - Queue: bounded FIFO of waiting callsigns (queue_entries)
//   - Current contact: the at-most-one active contact slot (current_contact,
//     a singleton row with id = 1)
//   - Worked history: TTL-bounded archive of completed contacts
//     (worked_contacts, filtered by expires_at on every read)
//   - Settings: singleton system configuration (settings, id = 1)
//
// The coordinator is the only component that calls mutating methods; the
// store itself enforces no cross-aggregate invariants.
//
// # Data Models
//
//   - QueueEntry: callsign + join time + optional enrichment profile.
//     Queue position is derived from FIFO order on read, never stored.
//   - Contact: the active contact with origin (from-queue or direct-start)
//     and optional channel metadata reported by a bridge
//   - WorkedContact: immutable archive record with an expiry horizon;
//     the only permitted mutation is the bulk retention extension
//   - Settings: active flag, frequency/split display strings, integration
//     toggle
//
// # SQLite Configuration
//
// The store uses SQLite in WAL mode via the pure-Go modernc.org/sqlite
// driver. The schema is created automatically on open. Use ":memory:" for
// tests.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateCallsign: callsign already queued
//
// All methods accept context.Context for cancellation support.
package store
