package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"github.com/orian/promptlib/config"
	"github.com/orian/promptlib/models"
	"github.com/rs/zerolog/log"
)

// ClickHouseStorage implements models.Storage on a ClickHouse server.
//
// Slots are append-only rows in a ReplacingMergeTree; reads pick the row
// with the highest version so results do not depend on when merges run.
type ClickHouseStorage struct {
	conn driver.Conn

	mu          sync.Mutex
	lastVersion uint64
}

// NewClickHouseStorage connects to ClickHouse and creates the tables.
func NewClickHouseStorage(ctx context.Context, cfg config.ClickHouseConfig) (*ClickHouseStorage, error) {
	conn, err := clickhouse.Open(clickHouseOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping failed: %w", err)
	}

	storage := &ClickHouseStorage{conn: conn}
	if err := storage.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return storage, nil
}

func clickHouseOptions(cfg config.ClickHouseConfig) *clickhouse.Options {
	useSecure := cfg.UseTLS()

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Str("user", cfg.User).
		Str("password", maskPassword(cfg.Password)).
		Bool("secure", useSecure).
		Msg("ClickHouse connection details")

	options := &clickhouse.Options{
		Addr: []string{cfg.Host},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: "promptlib", Version: "1.0"},
			},
		},
		// Disable debug logging which might expose workstation info
		Debug: false,
		Settings: clickhouse.Settings{
			"send_logs_level": "none",
		},
	}

	if useSecure {
		options.TLS = &tls.Config{
			InsecureSkipVerify: true, // Equivalent to --accept-invalid-certificate
		}
	}
	return options
}

func (s *ClickHouseStorage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS promptlib_slots (
			slot String,
			value String,
			version UInt64,
			updated_at DateTime64(9)
		) ENGINE = ReplacingMergeTree(version)
		ORDER BY slot`,
		`CREATE TABLE IF NOT EXISTS promptlib_events (
			id UUID,
			kind LowCardinality(String),
			record_count Int64,
			created_at DateTime64(6)
		) ENGINE = MergeTree
		ORDER BY created_at`,
	}
	for _, stmt := range statements {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseStorage) LoadSlot(ctx context.Context, slot string) ([]byte, bool, error) {
	rows, err := s.conn.Query(ctx,
		"SELECT argMax(value, version) FROM promptlib_slots WHERE slot = ? GROUP BY slot", slot)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load slot %s: %w", slot, err)
	}
	defer rows.Close()

	values, err := scanTextRows(rows)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load slot %s: %w", slot, err)
	}
	if len(values) == 0 {
		return nil, false, nil
	}
	return []byte(values[0]), true, nil
}

func (s *ClickHouseStorage) SaveSlot(ctx context.Context, slot string, data []byte) error {
	err := s.conn.Exec(ctx,
		"INSERT INTO promptlib_slots (slot, value, version, updated_at) VALUES (?, ?, ?, ?)",
		slot, string(data), s.nextVersion(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save slot %s: %w", slot, err)
	}
	return nil
}

// nextVersion returns a slot version from the clock that is strictly greater
// than every version this storage handed out before, so two saves within
// the same clock tick still order correctly.
func (s *ClickHouseStorage) nextVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := uint64(time.Now().UnixNano())
	if v <= s.lastVersion {
		v = s.lastVersion + 1
	}
	s.lastVersion = v
	return v
}

func (s *ClickHouseStorage) RecordEvent(ctx context.Context, event *models.LibraryEvent) error {
	fillEvent(event)
	id, err := uuid.Parse(event.ID)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", event.ID, err)
	}

	err = s.conn.Exec(ctx,
		"INSERT INTO promptlib_events (id, kind, record_count, created_at) VALUES (?, ?, ?, ?)",
		id, string(event.Kind), int64(event.Count), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

func (s *ClickHouseStorage) ListEvents(ctx context.Context, limit int) ([]*models.LibraryEvent, error) {
	query := "SELECT toString(id), kind, record_count, created_at FROM promptlib_events ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return scanEventRows(rows)
}

func (s *ClickHouseStorage) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return s.conn.Close()
}

// scanEventRows scans rows of (id, kind, record_count, created_at).
func scanEventRows(rows driver.Rows) ([]*models.LibraryEvent, error) {
	events := []*models.LibraryEvent{}

	for rows.Next() {
		var (
			e     models.LibraryEvent
			kind  string
			count int64
		)
		if err := rows.Scan(&e.ID, &kind, &count, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = models.EventKind(kind)
		e.Count = int(count)
		events = append(events, &e)
	}

	return events, rows.Err()
}

// scanTextRows scans rows that return a single text column.
func scanTextRows(rows driver.Rows) ([]string, error) {
	var lines []string

	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

func maskPassword(password string) string {
	if password == "" {
		return "<empty>"
	}
	if len(password) <= 2 {
		return password
	}
	return string(password[0]) + strings.Repeat("*", len(password)-2) + string(password[len(password)-1])
}
