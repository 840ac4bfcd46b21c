// ABOUTME: Sentinel errors for coordinator operations
// ABOUTME: Each maps to a distinct caller-visible failure in the HTTP layer

package coordinator

import "errors"

var (
	// ErrInvalidFormat means the callsign fails the amateur-radio pattern
	ErrInvalidFormat = errors.New("invalid callsign format")

	// ErrDuplicateCallsign means the callsign is already queued or is the
	// current contact
	ErrDuplicateCallsign = errors.New("callsign already registered")

	// ErrQueueFull means the queue is at its configured capacity
	ErrQueueFull = errors.New("queue is full")

	// ErrSystemInactive means registrations are closed
	ErrSystemInactive = errors.New("system is not active")

	// ErrContactInProgress means promotion was attempted while a contact
	// is being worked
	ErrContactInProgress = errors.New("a contact is already in progress")

	// ErrNothingActive means completion was attempted with no active contact
	ErrNothingActive = errors.New("no contact is active")
)
