// ABOUTME: Tests for contact lifecycle: promotion, direct-start, completion
// ABOUTME: Covers the Idle/Active state machine, interrupt policy, and concurrent promotion

package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pileup-gateway/internal/bus"
	"github.com/2389/pileup-gateway/internal/store"
)

func TestPromoteNext_EmptyQueueReturnsNil(t *testing.T) {
	f := newFixture(t, defaultConfig())

	contact, err := f.c.PromoteNext(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, contact)
}

func TestPromoteNext_MovesHeadToCurrent(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	for _, cs := range []string{"W1ABC", "W2DEF", "W3GHI"} {
		_, err := f.c.Register(ctx, cs)
		require.NoError(t, err)
		f.expectEvent(t, bus.TypeQueueUpdate)
	}

	contact, err := f.c.PromoteNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "W1ABC", contact.Callsign)
	assert.Equal(t, store.OriginFromQueue, contact.Origin)
	assert.Equal(t, f.clock(), contact.StartedAt)

	// current_qso first, then queue_update, atomically ordered
	evt := f.expectEvent(t, bus.TypeCurrentQSO)
	assert.Equal(t, "W1ABC", evt.Data.(*store.Contact).Callsign)

	evt = f.expectEvent(t, bus.TypeQueueUpdate)
	payload := evt.Data.(QueuePayload)
	require.Len(t, payload.Entries, 2)

	// Remaining positions are contiguous starting at 1
	assert.Equal(t, 1, payload.Entries[0].Position)
	assert.Equal(t, "W2DEF", payload.Entries[0].Callsign)
	assert.Equal(t, 2, payload.Entries[1].Position)
	assert.Equal(t, "W3GHI", payload.Entries[1].Callsign)
}

func TestPromoteNext_RejectsWhileContactActive(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	for _, cs := range []string{"W1ABC", "W2DEF"} {
		_, err := f.c.Register(ctx, cs)
		require.NoError(t, err)
	}

	_, err := f.c.PromoteNext(ctx)
	require.NoError(t, err)

	_, err = f.c.PromoteNext(ctx)
	assert.ErrorIs(t, err, ErrContactInProgress)
}

func TestCompleteCurrent_ArchivesAndClears(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	_, err := f.c.Register(ctx, "EI6LF")
	require.NoError(t, err)
	f.expectEvent(t, bus.TypeQueueUpdate)

	contact, err := f.c.PromoteNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EI6LF", contact.Callsign)
	f.expectEvent(t, bus.TypeCurrentQSO)

	evt := f.expectEvent(t, bus.TypeQueueUpdate)
	assert.Zero(t, evt.Data.(QueuePayload).Total, "queue empty after promotion")

	worked, err := f.c.CompleteCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EI6LF", worked.Callsign)
	assert.Equal(t, f.clock(), worked.CompletedAt)
	assert.False(t, worked.Interrupted)

	// current_qso with nil payload announces the now-empty slot
	evt = f.expectEvent(t, bus.TypeCurrentQSO)
	assert.Nil(t, evt.Data)

	evt = f.expectEvent(t, bus.TypeWorkedCallers)
	payload := evt.Data.(WorkedPayload)
	require.Len(t, payload.Contacts, 1)
	assert.Equal(t, "EI6LF", payload.Contacts[0].Callsign)

	current, err := f.c.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestCompleteCurrent_TwiceFailsSecondTime(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	_, err := f.c.Register(ctx, "EI6LF")
	require.NoError(t, err)
	_, err = f.c.PromoteNext(ctx)
	require.NoError(t, err)

	_, err = f.c.CompleteCurrent(ctx)
	require.NoError(t, err)

	_, err = f.c.CompleteCurrent(ctx)
	assert.ErrorIs(t, err, ErrNothingActive)
}

func TestDirectStart_RemovesQueuedCallsign(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	for _, cs := range []string{"W1ABC", "W2DEF", "JA1XYZ", "W4JKL"} {
		_, err := f.c.Register(ctx, cs)
		require.NoError(t, err)
		f.expectEvent(t, bus.TypeQueueUpdate)
	}

	// JA1XYZ is at position 3 when the bridge reports it on the air
	result, err := f.c.DirectStart(ctx, "ja1xyz", &store.ChannelMeta{Frequency: "14.195", Mode: "SSB"})
	require.NoError(t, err)
	assert.True(t, result.WasInQueue)
	assert.Nil(t, result.Interrupted)
	assert.Equal(t, "JA1XYZ", result.Contact.Callsign)
	assert.Equal(t, store.OriginDirectStart, result.Contact.Origin)
	require.NotNil(t, result.Contact.Channel)
	assert.Equal(t, "14.195", result.Contact.Channel.Frequency)

	f.expectEvent(t, bus.TypeCurrentQSO)
	evt := f.expectEvent(t, bus.TypeQueueUpdate)
	payload := evt.Data.(QueuePayload)
	require.Len(t, payload.Entries, 3)
	for i, want := range []string{"W1ABC", "W2DEF", "W4JKL"} {
		assert.Equal(t, i+1, payload.Entries[i].Position)
		assert.Equal(t, want, payload.Entries[i].Callsign)
	}
}

func TestDirectStart_InterruptsActiveContact(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	_, err := f.c.Register(ctx, "W1ABC")
	require.NoError(t, err)
	_, err = f.c.PromoteNext(ctx)
	require.NoError(t, err)

	result, err := f.c.DirectStart(ctx, "JA1XYZ", nil)
	require.NoError(t, err)
	assert.False(t, result.WasInQueue)
	require.NotNil(t, result.Interrupted)
	assert.Equal(t, "W1ABC", result.Interrupted.Callsign)

	// The interrupted contact lands in the worked history, flagged
	worked, err := f.c.Worked(ctx)
	require.NoError(t, err)
	require.Len(t, worked, 1)
	assert.Equal(t, "W1ABC", worked[0].Callsign)
	assert.True(t, worked[0].Interrupted)

	current, err := f.c.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "JA1XYZ", current.Callsign)
}

func TestDirectStart_InvalidCallsign(t *testing.T) {
	f := newFixture(t, defaultConfig())

	_, err := f.c.DirectStart(context.Background(), "not a call", nil)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestSetActive_HardResetOnEitherEdge(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	for _, cs := range []string{"W1ABC", "W2DEF", "W3GHI"} {
		_, err := f.c.Register(ctx, cs)
		require.NoError(t, err)
		f.expectEvent(t, bus.TypeQueueUpdate)
	}
	_, err := f.c.PromoteNext(ctx)
	require.NoError(t, err)
	f.expectEvent(t, bus.TypeCurrentQSO)
	f.expectEvent(t, bus.TypeQueueUpdate)

	settings, err := f.c.SetActive(ctx, false)
	require.NoError(t, err)
	assert.False(t, settings.Active)

	// Fixed emission order: system_status, queue_update, current_qso
	evt := f.expectEvent(t, bus.TypeSystemStatus)
	assert.False(t, evt.Data.(*store.Settings).Active)
	evt = f.expectEvent(t, bus.TypeQueueUpdate)
	assert.Zero(t, evt.Data.(QueuePayload).Total)
	evt = f.expectEvent(t, bus.TypeCurrentQSO)
	assert.Nil(t, evt.Data)

	_, err = f.c.SetActive(ctx, true)
	require.NoError(t, err)

	// Regardless of prior state: queue empty, current nil
	snap, err := f.c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.Queue.Total)
	assert.Nil(t, snap.Current)
	assert.True(t, snap.Settings.Active)

	// The promoted contact was archived as interrupted, not lost silently
	worked, err := f.c.Worked(ctx)
	require.NoError(t, err)
	require.Len(t, worked, 1)
	assert.True(t, worked[0].Interrupted)
}

func TestSetActive_NoEdgeNoReset(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	_, err := f.c.Register(ctx, "W1ABC")
	require.NoError(t, err)

	_, err = f.c.SetActive(ctx, true)
	require.NoError(t, err)

	entries, err := f.s.ListQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "setting the same state must not reset the queue")
}

func TestFrequencyAndSplit(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	require.NoError(t, f.c.SetFrequency(ctx, "14.195 MHz"))
	evt := f.expectEvent(t, bus.TypeFrequency)
	assert.Equal(t, "14.195 MHz", evt.Data.(FrequencyPayload).Frequency)

	require.NoError(t, f.c.SetSplit(ctx, "+5 up"))
	evt = f.expectEvent(t, bus.TypeSplit)
	assert.Equal(t, "+5 up", evt.Data.(SplitPayload).Split)

	require.NoError(t, f.c.ClearFrequency(ctx))
	evt = f.expectEvent(t, bus.TypeFrequency)
	assert.Empty(t, evt.Data.(FrequencyPayload).Frequency)

	settings, err := f.c.Settings(ctx)
	require.NoError(t, err)
	assert.Empty(t, settings.Frequency)
	assert.Equal(t, "+5 up", settings.Split)
}

func TestWorked_TTLExpiryWithoutRestart(t *testing.T) {
	f := newFixture(t, defaultConfig()) // 1h TTL
	ctx := context.Background()

	_, err := f.c.Register(ctx, "EI6LF")
	require.NoError(t, err)
	_, err = f.c.PromoteNext(ctx)
	require.NoError(t, err)
	_, err = f.c.CompleteCurrent(ctx)
	require.NoError(t, err)

	worked, err := f.c.Worked(ctx)
	require.NoError(t, err)
	require.Len(t, worked, 1)

	// Past the TTL the record vanishes from reads, no restart needed
	f.advance(61 * time.Minute)

	worked, err = f.c.Worked(ctx)
	require.NoError(t, err)
	assert.Empty(t, worked)
}

func TestExtendWorkedRetention_RevivesVisibility(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	_, err := f.c.Register(ctx, "EI6LF")
	require.NoError(t, err)
	_, err = f.c.PromoteNext(ctx)
	require.NoError(t, err)
	_, err = f.c.CompleteCurrent(ctx)
	require.NoError(t, err)

	f.advance(61 * time.Minute)

	n, err := f.c.ExtendWorkedRetention(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	worked, err := f.c.Worked(ctx)
	require.NoError(t, err)
	assert.Len(t, worked, 1)
}

func TestClearWorked(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	_, err := f.c.Register(ctx, "EI6LF")
	require.NoError(t, err)
	_, err = f.c.PromoteNext(ctx)
	require.NoError(t, err)
	_, err = f.c.CompleteCurrent(ctx)
	require.NoError(t, err)

	n, err := f.c.ClearWorked(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	worked, err := f.c.Worked(ctx)
	require.NoError(t, err)
	assert.Empty(t, worked)
}

func TestSweepExpired_PurgesAndBroadcasts(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	_, err := f.c.Register(ctx, "EI6LF")
	require.NoError(t, err)
	f.expectEvent(t, bus.TypeQueueUpdate)
	_, err = f.c.PromoteNext(ctx)
	require.NoError(t, err)
	f.expectEvent(t, bus.TypeCurrentQSO)
	f.expectEvent(t, bus.TypeQueueUpdate)
	_, err = f.c.CompleteCurrent(ctx)
	require.NoError(t, err)
	f.expectEvent(t, bus.TypeCurrentQSO)
	f.expectEvent(t, bus.TypeWorkedCallers)

	f.advance(61 * time.Minute)
	f.c.sweepExpired(ctx)

	evt := f.expectEvent(t, bus.TypeWorkedCallers)
	assert.Zero(t, evt.Data.(WorkedPayload).Total)
}

func TestConcurrentPromoteNext_NoDoublePromotion(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	_, err := f.c.Register(ctx, "EI6LF")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*store.Contact, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.c.PromoteNext(ctx)
		}(i)
	}
	wg.Wait()

	// Exactly one caller wins the single entry; the loser either saw the
	// occupied slot or, had the winner already completed, an empty queue.
	var winners int
	for i := 0; i < 2; i++ {
		if results[i] != nil {
			winners++
			assert.Equal(t, "EI6LF", results[i].Callsign)
			assert.NoError(t, errs[i])
		} else if errs[i] != nil {
			assert.ErrorIs(t, errs[i], ErrContactInProgress)
		}
	}
	assert.Equal(t, 1, winners)
}
