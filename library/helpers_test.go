package library

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/orian/promptlib/models"
	"github.com/stretchr/testify/require"
)

var errSave = errors.New("disk full")

// memStorage is an in-memory models.Storage for tests.
type memStorage struct {
	slots   map[string][]byte
	saves   map[string]int
	events  []*models.LibraryEvent
	loadErr error
	saveErr error
}

func newMemStorage() *memStorage {
	return &memStorage{
		slots: make(map[string][]byte),
		saves: make(map[string]int),
	}
}

func (m *memStorage) LoadSlot(_ context.Context, slot string) ([]byte, bool, error) {
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	data, ok := m.slots[slot]
	return data, ok, nil
}

func (m *memStorage) SaveSlot(_ context.Context, slot string, data []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.slots[slot] = append([]byte(nil), data...)
	m.saves[slot]++
	return nil
}

func (m *memStorage) RecordEvent(_ context.Context, event *models.LibraryEvent) error {
	if event.ID == "" {
		event.ID = fmt.Sprintf("event-%d", len(m.events)+1)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memStorage) ListEvents(_ context.Context, limit int) ([]*models.LibraryEvent, error) {
	out := make([]*models.LibraryEvent, 0, len(m.events))
	for i := len(m.events) - 1; i >= 0; i-- {
		out = append(out, m.events[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStorage) Ping(context.Context) error { return nil }
func (m *memStorage) Close() error                { return nil }

// put stores v as JSON in slot.
func (m *memStorage) put(t *testing.T, slot string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	m.slots[slot] = data
}

// decode reads slot into v.
func (m *memStorage) decode(t *testing.T, slot string, v any) {
	t.Helper()
	data, ok := m.slots[slot]
	require.True(t, ok, "slot %s was never saved", slot)
	require.NoError(t, json.Unmarshal(data, v))
}

// record builds a record with default tags derived from its axes.
func record(id int64, persona, theme, postType string) models.PromptRecord {
	return models.PromptRecord{
		ID:       id,
		Title:    fmt.Sprintf("%s • %s • %s", postType, theme, persona),
		Persona:  persona,
		Theme:    theme,
		PostType: postType,
		Tags:     models.AxisTags(persona, theme, postType),
		Body:     "body " + persona,
	}
}

// numbered returns n records with ids 1..n.
func numbered(n int) []models.PromptRecord {
	out := make([]models.PromptRecord, n)
	for i := range out {
		out[i] = record(int64(i+1), "P", "T", "K")
	}
	return out
}

func ids(records []models.PromptRecord) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func cardIDs(cards []Card) []int64 {
	out := make([]int64, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

// favSet is a FavoriteSet backed by a map.
type favSet map[int64]bool

func (f favSet) IsFavorite(id int64) bool { return f[id] }
