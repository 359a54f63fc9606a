package models

import "context"

// Persisted slot names. Each slot holds one JSON document.
const (
	SlotData      = "promptlib:data"
	SlotConfig    = "promptlib:cfg"
	SlotFavorites = "promptlib:favs"
)

// SlotStore is a named key-value store of JSON documents.
type SlotStore interface {
	// LoadSlot returns the stored value of slot.
	//
	// The boolean is false when the slot has never been written.
	LoadSlot(ctx context.Context, slot string) ([]byte, bool, error)

	// SaveSlot overwrites the value of slot.
	SaveSlot(ctx context.Context, slot string, data []byte) error
}

// EventLog keeps an append-only history of bulk library changes.
type EventLog interface {
	// RecordEvent appends an event. The event's ID and CreatedAt are
	// filled in when empty.
	RecordEvent(ctx context.Context, event *LibraryEvent) error

	// ListEvents returns the most recent events, newest first.
	// A non-positive limit returns every event.
	ListEvents(ctx context.Context, limit int) ([]*LibraryEvent, error)
}

// Storage defines the persistence layer for promptlib.
//
// It is implemented by DuckDBStorage (default), SQLiteStorage and
// ClickHouseStorage. The library core only sees the SlotStore half;
// the event log and Ping serve the API and CLI.
//
// Thread Safety: Implementations should be safe for concurrent use.
type Storage interface {
	SlotStore
	EventLog

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the storage.
	//
	// After Close is called, the storage should not be used.
	Close() error
}
