// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides queue/contact/worked/settings persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS queue_entries (
			callsign     TEXT PRIMARY KEY,
			joined_at    DATETIME NOT NULL,
			profile_json TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_queue_joined_at
			ON queue_entries(joined_at);

		CREATE TABLE IF NOT EXISTS current_contact (
			id           INTEGER PRIMARY KEY CHECK (id = 1),
			callsign     TEXT NOT NULL,
			started_at   DATETIME NOT NULL,
			origin       TEXT NOT NULL,
			channel_json TEXT,
			profile_json TEXT,

			CHECK (origin IN ('from-queue', 'direct-start'))
		);

		CREATE TABLE IF NOT EXISTS worked_contacts (
			id           TEXT PRIMARY KEY,
			callsign     TEXT NOT NULL,
			completed_at DATETIME NOT NULL,
			expires_at   DATETIME NOT NULL,
			origin       TEXT NOT NULL,
			interrupted  INTEGER NOT NULL DEFAULT 0,
			profile_json TEXT,

			CHECK (origin IN ('from-queue', 'direct-start'))
		);

		CREATE INDEX IF NOT EXISTS idx_worked_expires_at
			ON worked_contacts(expires_at);

		CREATE INDEX IF NOT EXISTS idx_worked_completed_at
			ON worked_contacts(completed_at DESC);

		CREATE TABLE IF NOT EXISTS settings (
			id                  INTEGER PRIMARY KEY CHECK (id = 1),
			active              INTEGER NOT NULL DEFAULT 0,
			frequency           TEXT NOT NULL DEFAULT '',
			split               TEXT NOT NULL DEFAULT '',
			integration_enabled INTEGER NOT NULL DEFAULT 0
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Seed the singleton settings row so reads never miss
	_, err := s.db.Exec(`INSERT OR IGNORE INTO settings (id) VALUES (1)`)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// marshalProfile encodes a profile to a nullable JSON column value.
func marshalProfile(p *Profile) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshaling profile: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// unmarshalProfile decodes a nullable JSON column value to a profile.
func unmarshalProfile(ns sql.NullString) *Profile {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var p Profile
	if err := json.Unmarshal([]byte(ns.String), &p); err != nil {
		return nil // Best effort: invalid JSON reads as unresolved
	}
	return &p
}

// AppendQueueEntry inserts a queue entry. Returns ErrDuplicateCallsign if
// the callsign is already queued.
func (s *SQLiteStore) AppendQueueEntry(ctx context.Context, entry *QueueEntry) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM queue_entries WHERE callsign = ?)`,
		entry.Callsign,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking queue entry: %w", err)
	}
	if exists {
		return ErrDuplicateCallsign
	}

	profileJSON, err := marshalProfile(entry.Profile)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO queue_entries (callsign, joined_at, profile_json) VALUES (?, ?, ?)`,
		entry.Callsign, entry.JoinedAt.UTC(), profileJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting queue entry: %w", err)
	}
	return nil
}

// RemoveQueueEntry deletes a queue entry and returns it.
// Returns ErrNotFound if the callsign is not queued.
func (s *SQLiteStore) RemoveQueueEntry(ctx context.Context, callsign string) (*QueueEntry, error) {
	entry, err := s.getQueueEntry(ctx, callsign)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM queue_entries WHERE callsign = ?`, callsign,
	); err != nil {
		return nil, fmt.Errorf("deleting queue entry: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStore) getQueueEntry(ctx context.Context, callsign string) (*QueueEntry, error) {
	var entry QueueEntry
	var profileJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT callsign, joined_at, profile_json FROM queue_entries WHERE callsign = ?`,
		callsign,
	).Scan(&entry.Callsign, &entry.JoinedAt, &profileJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying queue entry: %w", err)
	}
	entry.Profile = unmarshalProfile(profileJSON)
	return &entry, nil
}

// ListQueue returns all queue entries in FIFO order by join time.
func (s *SQLiteStore) ListQueue(ctx context.Context) ([]*QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT callsign, joined_at, profile_json FROM queue_entries
		 ORDER BY joined_at ASC, callsign ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying queue: %w", err)
	}
	defer rows.Close()

	var entries []*QueueEntry
	for rows.Next() {
		var entry QueueEntry
		var profileJSON sql.NullString
		if err := rows.Scan(&entry.Callsign, &entry.JoinedAt, &profileJSON); err != nil {
			return nil, fmt.Errorf("scanning queue entry: %w", err)
		}
		entry.Profile = unmarshalProfile(profileJSON)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// ClearQueue deletes all queue entries and returns how many were removed.
func (s *SQLiteStore) ClearQueue(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queue_entries`)
	if err != nil {
		return 0, fmt.Errorf("clearing queue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleared entries: %w", err)
	}
	return int(n), nil
}

// UpdateQueueProfile patches the profile of a queued callsign.
// Returns ErrNotFound if the callsign is no longer queued.
func (s *SQLiteStore) UpdateQueueProfile(ctx context.Context, callsign string, profile *Profile) error {
	profileJSON, err := marshalProfile(profile)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE queue_entries SET profile_json = ? WHERE callsign = ?`,
		profileJSON, callsign,
	)
	if err != nil {
		return fmt.Errorf("updating queue profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking queue profile update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCurrent returns the active contact, or nil when the slot is empty.
func (s *SQLiteStore) GetCurrent(ctx context.Context) (*Contact, error) {
	var contact Contact
	var channelJSON, profileJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT callsign, started_at, origin, channel_json, profile_json
		 FROM current_contact WHERE id = 1`,
	).Scan(&contact.Callsign, &contact.StartedAt, &contact.Origin, &channelJSON, &profileJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying current contact: %w", err)
	}

	contact.Profile = unmarshalProfile(profileJSON)
	if channelJSON.Valid && channelJSON.String != "" {
		var meta ChannelMeta
		if err := json.Unmarshal([]byte(channelJSON.String), &meta); err == nil {
			contact.Channel = &meta
		}
	}
	return &contact, nil
}

// SetCurrent installs a contact in the singleton slot, replacing any
// previous occupant.
func (s *SQLiteStore) SetCurrent(ctx context.Context, contact *Contact) error {
	profileJSON, err := marshalProfile(contact.Profile)
	if err != nil {
		return err
	}

	var channelJSON sql.NullString
	if contact.Channel != nil {
		b, err := json.Marshal(contact.Channel)
		if err != nil {
			return fmt.Errorf("marshaling channel meta: %w", err)
		}
		channelJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO current_contact (id, callsign, started_at, origin, channel_json, profile_json)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   callsign = excluded.callsign,
		   started_at = excluded.started_at,
		   origin = excluded.origin,
		   channel_json = excluded.channel_json,
		   profile_json = excluded.profile_json`,
		contact.Callsign, contact.StartedAt.UTC(), contact.Origin, channelJSON, profileJSON,
	)
	if err != nil {
		return fmt.Errorf("setting current contact: %w", err)
	}
	return nil
}

// ClearCurrent empties the current contact slot. Clearing an already-empty
// slot is not an error.
func (s *SQLiteStore) ClearCurrent(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM current_contact WHERE id = 1`); err != nil {
		return fmt.Errorf("clearing current contact: %w", err)
	}
	return nil
}

// UpdateCurrentProfile patches the profile of the active contact.
// Returns ErrNotFound if the slot is empty or occupied by a different callsign.
func (s *SQLiteStore) UpdateCurrentProfile(ctx context.Context, callsign string, profile *Profile) error {
	profileJSON, err := marshalProfile(profile)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE current_contact SET profile_json = ? WHERE id = 1 AND callsign = ?`,
		profileJSON, callsign,
	)
	if err != nil {
		return fmt.Errorf("updating current profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking current profile update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendWorked inserts a worked-history record.
func (s *SQLiteStore) AppendWorked(ctx context.Context, worked *WorkedContact) error {
	profileJSON, err := marshalProfile(worked.Profile)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO worked_contacts (id, callsign, completed_at, expires_at, origin, interrupted, profile_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		worked.ID, worked.Callsign, worked.CompletedAt.UTC(), worked.ExpiresAt.UTC(),
		worked.Origin, worked.Interrupted, profileJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting worked contact: %w", err)
	}
	return nil
}

// ListWorked returns unexpired worked records, most recent first.
// Expired records are filtered here so reads never require a prior sweep.
func (s *SQLiteStore) ListWorked(ctx context.Context, now time.Time) ([]*WorkedContact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, callsign, completed_at, expires_at, origin, interrupted, profile_json
		 FROM worked_contacts
		 WHERE expires_at > ?
		 ORDER BY completed_at DESC`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying worked contacts: %w", err)
	}
	defer rows.Close()

	var worked []*WorkedContact
	for rows.Next() {
		var w WorkedContact
		var profileJSON sql.NullString
		if err := rows.Scan(&w.ID, &w.Callsign, &w.CompletedAt, &w.ExpiresAt,
			&w.Origin, &w.Interrupted, &profileJSON); err != nil {
			return nil, fmt.Errorf("scanning worked contact: %w", err)
		}
		w.Profile = unmarshalProfile(profileJSON)
		worked = append(worked, &w)
	}
	return worked, rows.Err()
}

// PurgeExpiredWorked deletes records past their expiry horizon.
func (s *SQLiteStore) PurgeExpiredWorked(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM worked_contacts WHERE expires_at <= ?`, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purging expired worked contacts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged contacts: %w", err)
	}
	return int(n), nil
}

// ClearWorked deletes all worked records and returns how many were removed.
func (s *SQLiteStore) ClearWorked(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM worked_contacts`)
	if err != nil {
		return 0, fmt.Errorf("clearing worked contacts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleared contacts: %w", err)
	}
	return int(n), nil
}

// ExtendWorkedRetention pushes the expiry horizon of every record out by
// the given duration. This is the only mutation worked records permit.
// The shift happens in Go: the driver stores time.Time in a text format
// SQLite's date functions cannot parse, so SQL datetime arithmetic would
// corrupt the column.
func (s *SQLiteStore) ExtendWorkedRetention(ctx context.Context, extension time.Duration) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting retention transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, expires_at FROM worked_contacts`)
	if err != nil {
		return 0, fmt.Errorf("querying worked expiries: %w", err)
	}

	type expiry struct {
		id string
		at time.Time
	}
	var expiries []expiry
	for rows.Next() {
		var e expiry
		if err := rows.Scan(&e.id, &e.at); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning worked expiry: %w", err)
		}
		expiries = append(expiries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("reading worked expiries: %w", err)
	}
	rows.Close()

	for _, e := range expiries {
		if _, err := tx.ExecContext(ctx,
			`UPDATE worked_contacts SET expires_at = ? WHERE id = ?`,
			e.at.Add(extension).UTC(), e.id,
		); err != nil {
			return 0, fmt.Errorf("extending worked retention: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing retention extension: %w", err)
	}
	return len(expiries), nil
}

// GetSettings returns the singleton settings row.
func (s *SQLiteStore) GetSettings(ctx context.Context) (*Settings, error) {
	var settings Settings
	err := s.db.QueryRowContext(ctx,
		`SELECT active, frequency, split, integration_enabled FROM settings WHERE id = 1`,
	).Scan(&settings.Active, &settings.Frequency, &settings.Split, &settings.IntegrationEnabled)
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings overwrites the singleton settings row.
func (s *SQLiteStore) SaveSettings(ctx context.Context, settings *Settings) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE settings SET active = ?, frequency = ?, split = ?, integration_enabled = ? WHERE id = 1`,
		settings.Active, settings.Frequency, settings.Split, settings.IntegrationEnabled,
	)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
