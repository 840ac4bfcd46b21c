// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers queue FIFO ordering, current contact singleton, worked TTL filtering, settings

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return s
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestAppendAndListQueue_FIFOOrder(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	callsigns := []string{"W1ABC", "W2DEF", "W3GHI"}
	for i, cs := range callsigns {
		entry := &QueueEntry{Callsign: cs, JoinedAt: base.Add(time.Duration(i) * time.Second)}
		if err := store.AppendQueueEntry(ctx, entry); err != nil {
			t.Fatalf("AppendQueueEntry(%s) failed: %v", cs, err)
		}
	}

	entries, err := store.ListQueue(ctx)
	if err != nil {
		t.Fatalf("ListQueue failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, cs := range callsigns {
		if entries[i].Callsign != cs {
			t.Errorf("position %d: expected %s, got %s", i+1, cs, entries[i].Callsign)
		}
	}
}

func TestAppendQueueEntry_Duplicate(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	entry := &QueueEntry{Callsign: "EI6LF", JoinedAt: time.Now().UTC()}
	if err := store.AppendQueueEntry(ctx, entry); err != nil {
		t.Fatalf("first append failed: %v", err)
	}

	err := store.AppendQueueEntry(ctx, &QueueEntry{Callsign: "EI6LF", JoinedAt: time.Now().UTC()})
	if !errors.Is(err, ErrDuplicateCallsign) {
		t.Errorf("expected ErrDuplicateCallsign, got %v", err)
	}
}

func TestRemoveQueueEntry(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	joined := time.Now().UTC().Truncate(time.Second)
	if err := store.AppendQueueEntry(ctx, &QueueEntry{Callsign: "K1TTT", JoinedAt: joined}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	removed, err := store.RemoveQueueEntry(ctx, "K1TTT")
	if err != nil {
		t.Fatalf("RemoveQueueEntry failed: %v", err)
	}
	if removed.Callsign != "K1TTT" {
		t.Errorf("expected K1TTT, got %s", removed.Callsign)
	}
	if !removed.JoinedAt.Equal(joined) {
		t.Errorf("expected joined_at %v, got %v", joined, removed.JoinedAt)
	}

	entries, err := store.ListQueue(ctx)
	if err != nil {
		t.Fatalf("ListQueue failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty queue, got %d entries", len(entries))
	}
}

func TestRemoveQueueEntry_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	_, err := store.RemoveQueueEntry(context.Background(), "N0SUCH")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClearQueue(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	for i, cs := range []string{"W1ABC", "W2DEF"} {
		entry := &QueueEntry{Callsign: cs, JoinedAt: time.Now().UTC().Add(time.Duration(i) * time.Second)}
		if err := store.AppendQueueEntry(ctx, entry); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	n, err := store.ClearQueue(ctx)
	if err != nil {
		t.Fatalf("ClearQueue failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
}

func TestUpdateQueueProfile(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.AppendQueueEntry(ctx, &QueueEntry{Callsign: "EI6LF", JoinedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	profile := &Profile{Name: "Conor", Country: "Ireland", Grid: "IO63"}
	if err := store.UpdateQueueProfile(ctx, "EI6LF", profile); err != nil {
		t.Fatalf("UpdateQueueProfile failed: %v", err)
	}

	entries, err := store.ListQueue(ctx)
	if err != nil {
		t.Fatalf("ListQueue failed: %v", err)
	}
	if entries[0].Profile == nil || entries[0].Profile.Name != "Conor" {
		t.Errorf("profile not persisted: %+v", entries[0].Profile)
	}
}

func TestUpdateQueueProfile_Gone(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	err := store.UpdateQueueProfile(context.Background(), "N0SUCH", &Profile{Name: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCurrentContact_Singleton(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Empty slot reads as nil, not an error
	current, err := store.GetCurrent(ctx)
	if err != nil {
		t.Fatalf("GetCurrent failed: %v", err)
	}
	if current != nil {
		t.Fatalf("expected nil current contact, got %+v", current)
	}

	first := &Contact{
		Callsign:  "W1ABC",
		StartedAt: time.Now().UTC().Truncate(time.Second),
		Origin:    OriginFromQueue,
	}
	if err := store.SetCurrent(ctx, first); err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}

	// Setting again replaces, never adds a second row
	second := &Contact{
		Callsign:  "JA1XYZ",
		StartedAt: time.Now().UTC().Truncate(time.Second),
		Origin:    OriginDirectStart,
		Channel:   &ChannelMeta{Frequency: "14.195", Mode: "SSB"},
	}
	if err := store.SetCurrent(ctx, second); err != nil {
		t.Fatalf("second SetCurrent failed: %v", err)
	}

	current, err = store.GetCurrent(ctx)
	if err != nil {
		t.Fatalf("GetCurrent failed: %v", err)
	}
	if current.Callsign != "JA1XYZ" {
		t.Errorf("expected JA1XYZ, got %s", current.Callsign)
	}
	if current.Origin != OriginDirectStart {
		t.Errorf("expected direct-start origin, got %s", current.Origin)
	}
	if current.Channel == nil || current.Channel.Frequency != "14.195" {
		t.Errorf("channel meta not persisted: %+v", current.Channel)
	}
}

func TestClearCurrent_EmptyIsNoError(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if err := store.ClearCurrent(context.Background()); err != nil {
		t.Errorf("ClearCurrent on empty slot failed: %v", err)
	}
}

func TestUpdateCurrentProfile_WrongCallsign(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	contact := &Contact{Callsign: "W1ABC", StartedAt: time.Now().UTC(), Origin: OriginFromQueue}
	if err := store.SetCurrent(ctx, contact); err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}

	// The slot has moved on; a stale enrichment result must not land
	err := store.UpdateCurrentProfile(ctx, "JA1XYZ", &Profile{Name: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWorked_TTLFiltering(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	fresh := &WorkedContact{
		ID: "w1", Callsign: "W1ABC",
		CompletedAt: now, ExpiresAt: now.Add(time.Hour),
		Origin: OriginFromQueue,
	}
	expired := &WorkedContact{
		ID: "w2", Callsign: "W2DEF",
		CompletedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
		Origin: OriginFromQueue,
	}
	for _, w := range []*WorkedContact{fresh, expired} {
		if err := store.AppendWorked(ctx, w); err != nil {
			t.Fatalf("AppendWorked failed: %v", err)
		}
	}

	worked, err := store.ListWorked(ctx, now)
	if err != nil {
		t.Fatalf("ListWorked failed: %v", err)
	}
	if len(worked) != 1 || worked[0].Callsign != "W1ABC" {
		t.Errorf("expected only W1ABC, got %+v", worked)
	}

	purged, err := store.PurgeExpiredWorked(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpiredWorked failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged, got %d", purged)
	}
}

func TestWorked_ExtendRetention(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	worked := &WorkedContact{
		ID: "w1", Callsign: "W1ABC",
		CompletedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
		Origin: OriginFromQueue,
	}
	if err := store.AppendWorked(ctx, worked); err != nil {
		t.Fatalf("AppendWorked failed: %v", err)
	}

	// Expired record is invisible until retention is extended past now
	listed, err := store.ListWorked(ctx, now)
	if err != nil {
		t.Fatalf("ListWorked failed: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected no visible records, got %d", len(listed))
	}

	n, err := store.ExtendWorkedRetention(ctx, 3*time.Hour)
	if err != nil {
		t.Fatalf("ExtendWorkedRetention failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 extended, got %d", n)
	}

	listed, err = store.ListWorked(ctx, now)
	if err != nil {
		t.Fatalf("ListWorked failed: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected record visible after extension, got %d", len(listed))
	}

	// The stored expiry must shift by exactly the extension, surviving
	// the driver's time encoding round-trip
	want := worked.ExpiresAt.Add(3 * time.Hour)
	if got := listed[0].ExpiresAt; !got.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, got)
	}
}

func TestWorked_ExtendRetentionRepeatedly(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	worked := &WorkedContact{
		ID: "w1", Callsign: "W1ABC",
		CompletedAt: now, ExpiresAt: now.Add(time.Hour),
		Origin: OriginFromQueue,
	}
	if err := store.AppendWorked(ctx, worked); err != nil {
		t.Fatalf("AppendWorked failed: %v", err)
	}

	// Each extension rereads the stored value, so a second pass catches
	// any corruption the first write introduced
	for i := 0; i < 2; i++ {
		if _, err := store.ExtendWorkedRetention(ctx, 30*time.Minute); err != nil {
			t.Fatalf("ExtendWorkedRetention pass %d failed: %v", i+1, err)
		}
	}

	listed, err := store.ListWorked(ctx, now)
	if err != nil {
		t.Fatalf("ListWorked failed: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 record, got %d", len(listed))
	}
	want := now.Add(2 * time.Hour)
	if got := listed[0].ExpiresAt; !got.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, got)
	}
}

func TestWorked_ClearAll(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	for i, cs := range []string{"W1ABC", "W2DEF", "W3GHI"} {
		w := &WorkedContact{
			ID: cs, Callsign: cs,
			CompletedAt: now.Add(time.Duration(i) * time.Minute),
			ExpiresAt:   now.Add(time.Hour),
			Origin:      OriginFromQueue,
		}
		if err := store.AppendWorked(ctx, w); err != nil {
			t.Fatalf("AppendWorked failed: %v", err)
		}
	}

	n, err := store.ClearWorked(ctx)
	if err != nil {
		t.Fatalf("ClearWorked failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 cleared, got %d", n)
	}
}

func TestSettings_DefaultsAndRoundTrip(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()

	settings, err := store.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings.Active {
		t.Error("expected inactive by default")
	}

	settings.Active = true
	settings.Frequency = "14.195 MHz"
	settings.Split = "+5 up"
	settings.IntegrationEnabled = true
	if err := store.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	got, err := store.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if !got.Active || got.Frequency != "14.195 MHz" || got.Split != "+5 up" || !got.IntegrationEnabled {
		t.Errorf("settings did not round-trip: %+v", got)
	}
}
