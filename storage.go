package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"github.com/orian/promptlib/models"
	_ "modernc.org/sqlite"
)

// SQLStorage implements models.Storage on top of database/sql. The DuckDB
// and SQLite backends share it; both speak the same schema and upsert
// syntax.
type SQLStorage struct {
	db *sql.DB
}

// NewDuckDBStorage opens (or creates) a DuckDB file at dbPath.
func NewDuckDBStorage(dbPath string) (*SQLStorage, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	return newSQLStorage(db)
}

// NewSQLiteStorage opens (or creates) a SQLite file at dbPath.
func NewSQLiteStorage(dbPath string) (*SQLStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	return newSQLStorage(db)
}

func newSQLStorage(db *sql.DB) (*SQLStorage, error) {
	storage := &SQLStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Run migrations
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

func (s *SQLStorage) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS kv_slots (
			slot VARCHAR PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at_epoch BIGINT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLStorage) LoadSlot(ctx context.Context, slot string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_slots WHERE slot = ?", slot).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load slot %s: %w", slot, err)
	}
	return []byte(value), true, nil
}

func (s *SQLStorage) SaveSlot(ctx context.Context, slot string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_slots (slot, value, updated_at_epoch) VALUES (?, ?, ?)
		ON CONFLICT (slot) DO UPDATE SET value = excluded.value, updated_at_epoch = excluded.updated_at_epoch
	`, slot, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save slot %s: %w", slot, err)
	}
	return nil
}

func (s *SQLStorage) RecordEvent(ctx context.Context, event *models.LibraryEvent) error {
	fillEvent(event)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO library_events (id, kind, record_count, created_at_epoch) VALUES (?, ?, ?, ?)",
		event.ID, string(event.Kind), event.Count, event.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

func (s *SQLStorage) ListEvents(ctx context.Context, limit int) ([]*models.LibraryEvent, error) {
	query := `
		SELECT id, kind, record_count, created_at_epoch
		FROM library_events
		ORDER BY created_at_epoch DESC, id DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	events := []*models.LibraryEvent{}
	for rows.Next() {
		var e models.LibraryEvent
		var kind string
		var createdAt int64
		if err := rows.Scan(&e.ID, &kind, &e.Count, &createdAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		e.Kind = models.EventKind(kind)
		e.CreatedAt = time.UnixMicro(createdAt)
		events = append(events, &e)
	}

	return events, rows.Err()
}

func (s *SQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// fillEvent sets the id and timestamp of an event when the caller left them empty.
func fillEvent(event *models.LibraryEvent) {
	if event.ID == "" {
		event.ID = generateID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
}

func generateID() string {
	return uuid.New().String()
}
