package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SchemaVersion is the current audit database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements creating the audit database.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    recorded_at INTEGER NOT NULL,
    category TEXT NOT NULL,
    actor TEXT,
    action TEXT NOT NULL,
    entity_type TEXT,
    entity_id TEXT,
    outcome TEXT NOT NULL,
    details TEXT
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_recorded_at ON audit_entries(recorded_at);
CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_entries(actor);
CREATE INDEX IF NOT EXISTS idx_audit_category ON audit_entries(category);
`

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// SQLiteConfig configures a SQLiteSink.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/audit.db",
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteSink persists audit entries to SQLite. It implements Sink and
// Store.
type SQLiteSink struct {
	db     *sql.DB
	insert *sql.Stmt
	logger *slog.Logger
}

// NewSQLiteSink opens (creating if needed) the audit database.
func NewSQLiteSink(config *SQLiteConfig, logger *slog.Logger) (*SQLiteSink, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("%w: sqlite path cannot be empty", ErrInvalidConfig)
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		config.Path, config.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}
	if _, err := db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to record schema version: %w", err)
	}

	insert, err := db.Prepare(`
		INSERT INTO audit_entries (id, recorded_at, category, actor, action, entity_type, entity_id, outcome, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}

	s := &SQLiteSink{
		db:     db,
		insert: insert,
		logger: logger.With("component", "audit.sqlite"),
	}
	s.logger.Info("audit database opened", "path", config.Path)
	return s, nil
}

// Write implements Sink.
func (s *SQLiteSink) Write(ctx context.Context, e Entry) error {
	var details any
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("failed to encode details of %s: %w", e.ID, err)
		}
		details = string(b)
	}
	_, err := s.insert.ExecContext(ctx,
		e.ID, e.Timestamp.UnixNano(), string(e.Category), e.Actor, e.Action,
		e.EntityType, e.EntityID, string(e.Outcome), details,
	)
	if err != nil {
		return fmt.Errorf("failed to store audit entry %s: %w", e.ID, err)
	}
	return nil
}

// Query returns stored entries matching f, oldest first.
func (s *SQLiteSink) Query(ctx context.Context, f *Filter) ([]Entry, error) {
	where, args := whereClause(f)
	q := "SELECT id, recorded_at, category, actor, action, entity_type, entity_id, outcome, details FROM audit_entries" +
		where + " ORDER BY recorded_at ASC"
	if f != nil && f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			nanos    int64
			category string
			outcome  string
			actor    sql.NullString
			etype    sql.NullString
			eid      sql.NullString
			details  sql.NullString
		)
		if err := rows.Scan(&e.ID, &nanos, &category, &actor, &e.Action, &etype, &eid, &outcome, &details); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp = time.Unix(0, nanos).UTC()
		e.Category = Category(category)
		e.Outcome = Outcome(outcome)
		e.Actor, e.EntityType, e.EntityID = actor.String, etype.String, eid.String
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				s.logger.Warn("discarding undecodable audit details", "entry_id", e.ID, "error", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count implements Store.
func (s *SQLiteSink) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return n, nil
}

// DeleteBefore implements Store.
func (s *SQLiteSink) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_entries WHERE recorded_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit entries: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOldest implements Store.
func (s *SQLiteSink) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM audit_entries WHERE id IN (
			SELECT id FROM audit_entries ORDER BY recorded_at ASC LIMIT ?
		)`, n)
	if err != nil {
		return 0, fmt.Errorf("failed to delete oldest audit entries: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	if err := s.insert.Close(); err != nil {
		s.logger.Warn("failed to close prepared statement", "error", err)
	}
	return s.db.Close()
}

func whereClause(f *Filter) (string, []any) {
	if f == nil {
		return "", nil
	}
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if f.Category != "" {
		add("category = ?", string(f.Category))
	}
	if f.Actor != "" {
		add("actor = ?", f.Actor)
	}
	if f.EntityType != "" {
		add("entity_type = ?", f.EntityType)
	}
	if f.Outcome != "" {
		add("outcome = ?", string(f.Outcome))
	}
	if !f.Since.IsZero() {
		add("recorded_at >= ?", f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		add("recorded_at < ?", f.Until.UnixNano())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
