// Package coordinator implements the pileup state machine.
//
// # Overview
//
// The Coordinator is the single writer for all four aggregates: the
// waiting queue, the current contact slot, the worked history, and the
// system settings. Admin handlers, public handlers and bridge callbacks
// all route their mutations through it; nothing else writes the store.
//
// # Concurrency
//
// One mutex guards every operation. SetActive and DirectStart touch the
// queue and the contact slot in the same step, so per-aggregate locks
// would admit lost-update races; a single critical section makes those
// transitions atomic and makes the event stream match commit order.
//
// Enrichment lookups are the one thing that must not run under the lock:
// operations commit and publish immediately with a nil profile, and a
// follow-up patch event goes out when the lookup resolves.
//
// # Contact lifecycle
//
// Idle (no current contact) -> Active (slot set) -> Idle.
//
//   - PromoteNext: queue head -> slot, origin from-queue. Empty queue
//     returns nil, nil; an occupied slot returns ErrContactInProgress.
//   - DirectStart: bridge-reported contact -> slot, origin direct-start.
//     Dequeues the callsign if queued; archives an active contact as
//     interrupted (direct-start always wins).
//   - CompleteCurrent: slot -> worked history. An empty slot returns
//     ErrNothingActive so repeated completion is a visible failure.
//
// # Events
//
// Every committed mutation publishes a typed event on the bus before the
// lock is released. Subscribers therefore see events for each aggregate
// in the order the mutations committed, and never see uncommitted state.
package coordinator
