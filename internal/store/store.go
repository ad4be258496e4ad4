// Package store persists the blocklist in SQLite and pushes change
// notifications to registered listeners so the in-memory registry stays in
// sync without polling.
package store

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"clipguard/internal/errors"
	"clipguard/internal/fingerprint"
	"clipguard/internal/registry"
)

const schema = `
CREATE TABLE IF NOT EXISTS blocklist (
    fingerprint TEXT PRIMARY KEY,
    created_at  TEXT NOT NULL,
    origin      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_blocklist_created_at ON blocklist (created_at);
`

// Listener receives change notifications. Delivery is asynchronous; the
// store never blocks a write on a listener.
type Listener interface {
	BlockAdded(rec registry.Record)
	BlockRemoved(fp fingerprint.Fingerprint)
	BlocklistCleared()
}

// Store manages blocklist persistence backed by SQLite.
type Store struct {
	db *sql.DB

	mu        sync.Mutex
	listeners []Listener

	// events serializes notifications so listeners observe changes in
	// commit order even though delivery is asynchronous.
	events chan func(Listener)
	done   chan struct{}
}

// Open initializes or connects to the blocklist database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreFailed, "open sqlite db")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, errors.Wrapf(execErr, errors.CodeStoreFailed, "apply pragma %q", pragma)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CodeStoreFailed, "apply schema")
	}

	s := &Store{
		db:     db,
		events: make(chan func(Listener), 64),
		done:   make(chan struct{}),
	}
	go s.dispatch()
	return s, nil
}

// dispatch delivers queued notifications in order.
func (s *Store) dispatch() {
	defer close(s.done)
	for fn := range s.events {
		s.mu.Lock()
		listeners := make([]Listener, len(s.listeners))
		copy(listeners, s.listeners)
		s.mu.Unlock()

		for _, l := range listeners {
			fn(l)
		}
	}
}

// Close drains in-flight notifications and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	close(s.events)
	<-s.done
	return s.db.Close()
}

// Subscribe registers a listener for change notifications.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// List returns all records ordered by creation time.
func (s *Store) List(ctx context.Context) ([]registry.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, created_at, origin FROM blocklist ORDER BY created_at, fingerprint`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreFailed, "list blocklist")
	}
	defer rows.Close()

	var records []registry.Record
	for rows.Next() {
		var fp, createdAt, origin string
		if err := rows.Scan(&fp, &createdAt, &origin); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreFailed, "scan blocklist row")
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeStoreFailed, "parse created_at %q", createdAt)
		}
		records = append(records, registry.Record{
			Fingerprint: fingerprint.Fingerprint(fp),
			CreatedAt:   ts,
			Origin:      registry.Origin(origin),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreFailed, "iterate blocklist rows")
	}
	return records, nil
}

// Add inserts a record. Returns false when the fingerprint already exists.
func (s *Store) Add(ctx context.Context, rec registry.Record) (bool, error) {
	if _, err := fingerprint.Parse(string(rec.Fingerprint)); err != nil {
		return false, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO blocklist (fingerprint, created_at, origin) VALUES (?, ?, ?)
         ON CONFLICT (fingerprint) DO NOTHING`,
		string(rec.Fingerprint),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(rec.Origin),
	)
	if err != nil {
		return false, errors.Wrap(err, errors.CodeStoreFailed, "insert block record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, errors.CodeStoreFailed, "rows affected")
	}
	if n == 0 {
		return false, nil
	}

	s.notify(func(l Listener) { l.BlockAdded(rec) })
	return true, nil
}

// Remove deletes a record, reporting whether it existed.
func (s *Store) Remove(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM blocklist WHERE fingerprint = ?`, string(fp))
	if err != nil {
		return false, errors.Wrap(err, errors.CodeStoreFailed, "delete block record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, errors.CodeStoreFailed, "rows affected")
	}
	if n == 0 {
		return false, nil
	}

	s.notify(func(l Listener) { l.BlockRemoved(fp) })
	return true, nil
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blocklist`); err != nil {
		return errors.Wrap(err, errors.CodeStoreFailed, "clear blocklist")
	}
	s.notify(func(l Listener) { l.BlocklistCleared() })
	return nil
}

// notify queues a change for ordered asynchronous delivery.
func (s *Store) notify(fn func(Listener)) {
	s.events <- fn
}

// SyncRegistry loads the full blocklist into the registry and subscribes it
// for future changes.
func (s *Store) SyncRegistry(ctx context.Context, reg *registry.Registry) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}
	reg.Replace(records)
	s.Subscribe(&registrySync{reg: reg})
	slog.Info("blocklist loaded", "records", len(records))
	return nil
}

// registrySync forwards store changes into a registry.
type registrySync struct {
	reg *registry.Registry
}

func (r *registrySync) BlockAdded(rec registry.Record)          { r.reg.Add(rec) }
func (r *registrySync) BlockRemoved(fp fingerprint.Fingerprint) { r.reg.Remove(fp) }
func (r *registrySync) BlocklistCleared()                       { r.reg.Clear() }
