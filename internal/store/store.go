// Package store provides SQLite-backed persistence for Finey: the local task
// cache, scheduled reminders and the audit trail.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/finey-app/finey/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store provides access to the Finey SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL keeps the daemon and reminder dispatcher from blocking each other
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		body TEXT,
		fire_at INTEGER NOT NULL,
		fired_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		task_id TEXT,
		details TEXT,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(fired_at, fire_at);
	CREATE INDEX IF NOT EXISTS idx_audit_log_task_id ON audit_log(task_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Key/Value Cache ---

// Get returns the value stored under key, or nil when the key is absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query key %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert key %q: %w", key, err)
	}
	return nil
}

// Clear removes every cached key.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv`); err != nil {
		return fmt.Errorf("clear kv: %w", err)
	}
	return nil
}

// --- Reminder Operations ---

// CreateReminder inserts a reminder that fires at fireAt.
func (s *Store) CreateReminder(ctx context.Context, title, body string, fireAt time.Time) (*models.Reminder, error) {
	r := &models.Reminder{
		ID:     uuid.New().String(),
		Title:  title,
		Body:   body,
		FireAt: fireAt.UTC().Truncate(time.Millisecond),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, title, body, fire_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.Title, r.Body, r.FireAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}
	return r, nil
}

// GetReminder retrieves a reminder by ID. It returns nil when absent.
func (s *Store) GetReminder(ctx context.Context, id string) (*models.Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, body, fire_at, fired_at FROM reminders WHERE id = ?`, id)

	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query reminder: %w", err)
	}
	return r, nil
}

// DeleteReminder removes a reminder. It reports whether a row was removed.
func (s *Store) DeleteReminder(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete reminder: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n > 0, nil
}

// DueReminders returns unfired reminders whose fire time is at or before now,
// oldest first.
func (s *Store) DueReminders(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, body, fire_at, fired_at FROM reminders
		 WHERE fired_at IS NULL AND fire_at <= ? ORDER BY fire_at ASC`,
		now.UTC().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

// MarkReminderFired records that a reminder fired. It reports false when the
// reminder was cancelled or already fired in the meantime.
func (s *Store) MarkReminderFired(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET fired_at = ? WHERE id = ? AND fired_at IS NULL`,
		at.UTC().UnixMilli(), id,
	)
	if err != nil {
		return false, fmt.Errorf("mark reminder fired: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n > 0, nil
}

// PruneFiredReminders deletes reminders that fired before cutoff.
func (s *Store) PruneFiredReminders(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE fired_at IS NOT NULL AND fired_at < ?`,
		cutoff.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune reminders: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*models.Reminder, error) {
	var r models.Reminder
	var body sql.NullString
	var fireAt int64
	var firedAt sql.NullInt64

	if err := row.Scan(&r.ID, &r.Title, &body, &fireAt, &firedAt); err != nil {
		return nil, err
	}
	if body.Valid {
		r.Body = body.String
	}
	r.FireAt = time.UnixMilli(fireAt).UTC()
	if firedAt.Valid {
		t := time.UnixMilli(firedAt.Int64).UTC()
		r.FiredAt = &t
	}
	return &r, nil
}

// --- Audit Operations ---

// WriteAudit writes an audit entry.
func (s *Store) WriteAudit(ctx context.Context, action, inputsHash, outcome, taskID, details string) (*models.AuditEntry, error) {
	entry := &models.AuditEntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		TaskID:     taskID,
		Details:    details,
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, inputs_hash, outcome, task_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Action, entry.InputsHash, entry.Outcome, entry.TaskID, entry.Details, entry.Timestamp.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	return entry, nil
}

// ListAudit returns the most recent audit entries, optionally for one task.
func (s *Store) ListAudit(ctx context.Context, taskID string, limit int) ([]models.AuditEntry, error) {
	query := `SELECT id, action, inputs_hash, outcome, task_id, details, timestamp FROM audit_log`
	var args []any

	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY timestamp DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var taskIDCol, details sql.NullString
		var ts int64
		if err := rows.Scan(&e.ID, &e.Action, &e.InputsHash, &e.Outcome, &taskIDCol, &details, &ts); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if taskIDCol.Valid {
			e.TaskID = taskIDCol.String
		}
		if details.Valid {
			e.Details = details.String
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
