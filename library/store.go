package library

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/orian/promptlib/models"
	"github.com/rs/zerolog/log"
)

// Store holds the ordered record collection and the favorite set.
//
// Every mutation is persisted to the slot store. Favorites live in their own
// slot and are never touched by collection changes, so they may reference
// ids that no longer exist.
type Store struct {
	slots   models.SlotStore
	records []models.PromptRecord
	favs    map[int64]struct{}
	favList []int64
}

// OpenStore loads the collection and favorites from slots.
//
// A missing or corrupt data slot falls back to seeds; a missing or corrupt
// favorites slot falls back to an empty set. Load failures are never returned.
func OpenStore(ctx context.Context, slots models.SlotStore, seeds []models.PromptRecord) *Store {
	s := &Store{
		slots: slots,
		favs:  make(map[int64]struct{}),
	}

	var records []models.PromptRecord
	if !loadSlot(ctx, slots, models.SlotData, &records) {
		records = seeds
	}
	s.records = cloneRecords(records)

	var favs []int64
	if loadSlot(ctx, slots, models.SlotFavorites, &favs) {
		for _, id := range favs {
			s.addFavorite(id)
		}
	}

	return s
}

// loadSlot decodes slot into dst. It reports false when the slot is absent,
// unreadable or not valid JSON for dst.
func loadSlot(ctx context.Context, slots models.SlotStore, slot string, dst any) bool {
	data, ok, err := slots.LoadSlot(ctx, slot)
	if err != nil {
		log.Debug().Err(err).Str("slot", slot).Msg("Failed to read slot, using default")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Debug().Err(err).Str("slot", slot).Msg("Corrupt slot, using default")
		return false
	}
	return true
}

// Records returns the collection in order. Callers must not modify it.
func (s *Store) Records() []models.PromptRecord {
	return s.records
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Get returns the record with the given id.
func (s *Store) Get(id int64) (models.PromptRecord, bool) {
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return models.PromptRecord{}, false
}

// ReplaceAll swaps the whole collection. Favorites are kept.
func (s *Store) ReplaceAll(ctx context.Context, records []models.PromptRecord) error {
	s.records = cloneRecords(records)
	return s.saveRecords(ctx)
}

// Append adds records after the existing ones. Their ids must not collide
// with existing ids; use NextID to allocate them.
func (s *Store) Append(ctx context.Context, records []models.PromptRecord) error {
	s.records = append(s.records, cloneRecords(records)...)
	return s.saveRecords(ctx)
}

// NextID returns max(existing ids, 0) + 1.
func (s *Store) NextID() int64 {
	var maxID int64
	for _, r := range s.records {
		maxID = max(maxID, r.ID)
	}
	return maxID + 1
}

// ToggleFavorite flips the favorite state of id and returns the new state.
// The id does not have to reference an existing record.
func (s *Store) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	favorite := !s.IsFavorite(id)
	if favorite {
		s.addFavorite(id)
	} else {
		s.removeFavorite(id)
	}
	return favorite, s.saveFavorites(ctx)
}

// IsFavorite reports whether id is in the favorite set.
func (s *Store) IsFavorite(id int64) bool {
	_, ok := s.favs[id]
	return ok
}

// Favorites returns the favorite ids in the order they were added.
func (s *Store) Favorites() []int64 {
	out := make([]int64, len(s.favList))
	copy(out, s.favList)
	return out
}

func (s *Store) addFavorite(id int64) {
	if _, ok := s.favs[id]; ok {
		return
	}
	s.favs[id] = struct{}{}
	s.favList = append(s.favList, id)
}

func (s *Store) removeFavorite(id int64) {
	delete(s.favs, id)
	for i, fav := range s.favList {
		if fav == id {
			s.favList = append(s.favList[:i], s.favList[i+1:]...)
			return
		}
	}
}

func (s *Store) saveRecords(ctx context.Context) error {
	data, err := json.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	if err := s.slots.SaveSlot(ctx, models.SlotData, data); err != nil {
		return fmt.Errorf("failed to save records: %w", err)
	}
	return nil
}

func (s *Store) saveFavorites(ctx context.Context) error {
	data, err := json.Marshal(s.Favorites())
	if err != nil {
		return fmt.Errorf("failed to marshal favorites: %w", err)
	}
	if err := s.slots.SaveSlot(ctx, models.SlotFavorites, data); err != nil {
		return fmt.Errorf("failed to save favorites: %w", err)
	}
	return nil
}

// cloneRecords copies records so the store never aliases caller slices.
// Nil tag lists become empty so exports never contain null.
func cloneRecords(records []models.PromptRecord) []models.PromptRecord {
	out := make([]models.PromptRecord, len(records))
	for i, r := range records {
		tags := make([]string, len(r.Tags))
		copy(tags, r.Tags)
		r.Tags = tags
		out[i] = r
	}
	return out
}
