package library

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/orian/promptlib/models"
)

// Placeholders used by ParseImport for missing fields.
const (
	MissingValue = "N/A"
	titleFormat  = "Prompt #%d"
)

// ErrNotArray is returned when an import document is not a JSON array.
var ErrNotArray = errors.New("invalid JSON: expected an array of prompts")

// ImportError reports why an import document was rejected.
type ImportError struct {
	// Index is the 1-based element that failed, or 0 for document-level errors.
	Index int
	Err   error
}

func (e *ImportError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("import failed at element %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("import failed: %v", e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// importRecord is the loose shape accepted on import. Every field is kept
// raw and coerced by toRecord. Legacy keys are aliases of the current ones
// and only used when the current key is absent.
type importRecord struct {
	ID       json.RawMessage `json:"id"`
	Title    json.RawMessage `json:"title"`
	Persona  json.RawMessage `json:"persona"`
	Theme    json.RawMessage `json:"theme"`
	PostType json.RawMessage `json:"postType"`
	Tags     json.RawMessage `json:"tags"`
	Body     json.RawMessage `json:"body"`

	LegacyTitle    json.RawMessage `json:"titulo"`
	LegacyTheme    json.RawMessage `json:"tema"`
	LegacyPostType json.RawMessage `json:"tipo"`
	LegacyBody     json.RawMessage `json:"prompt"`
}

// ParseImport decodes an import document into records.
//
// Missing fields are filled in per element i (1-based): id becomes i, title
// becomes "Prompt #i", axis values become MissingValue, body becomes empty,
// and tags not given as an array are derived from the axis values.
// Values of the wrong JSON type are coerced rather than rejected: ids must be
// integral numbers or fall back to i, other scalars are turned into text.
// Any error leaves nothing half-parsed: either every element is returned or
// none is.
func ParseImport(data []byte) ([]models.PromptRecord, error) {
	if !isArray(data) {
		if !json.Valid(data) {
			var v any
			err := json.Unmarshal(data, &v)
			if err == nil {
				err = errors.New("invalid JSON")
			}
			return nil, &ImportError{Err: err}
		}
		return nil, &ImportError{Err: ErrNotArray}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, &ImportError{Err: err}
	}

	records := make([]models.PromptRecord, 0, len(elems))
	for i, raw := range elems {
		pos := i + 1
		// Elements that are not objects carry no fields and get every default.
		var in importRecord
		if isObject(raw) {
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, &ImportError{Index: pos, Err: err}
			}
		}
		records = append(records, in.toRecord(pos))
	}
	return records, nil
}

func (in *importRecord) toRecord(pos int) models.PromptRecord {
	persona, hasPersona := coerceString(in.Persona)
	theme, hasTheme := coerceString(firstSet(in.Theme, in.LegacyTheme))
	postType, hasPostType := coerceString(firstSet(in.PostType, in.LegacyPostType))

	r := models.PromptRecord{
		ID:       coerceID(in.ID, int64(pos)),
		Title:    fmt.Sprintf(titleFormat, pos),
		Persona:  valueOr(persona, hasPersona, MissingValue),
		Theme:    valueOr(theme, hasTheme, MissingValue),
		PostType: valueOr(postType, hasPostType, MissingValue),
	}
	if title, ok := coerceString(firstSet(in.Title, in.LegacyTitle)); ok {
		r.Title = title
	}
	r.Body, _ = coerceString(firstSet(in.Body, in.LegacyBody))

	if isArray(in.Tags) {
		r.Tags = coerceTags(in.Tags)
	} else {
		r.Tags = models.AxisTags(persona, theme, postType)
	}
	return r
}

// coerceTags stringifies every non-null element of a JSON array.
func coerceTags(raw json.RawMessage) []string {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return []string{}
	}
	tags := make([]string, 0, len(elems))
	for _, e := range elems {
		if tag, ok := coerceString(e); ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Export encodes records as indented JSON, exactly as held in memory.
func Export(records []models.PromptRecord) ([]byte, error) {
	if records == nil {
		records = []models.PromptRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return data, nil
}

// firstSet returns the first value that is present and not null.
func firstSet(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if !isNull(bytes.TrimSpace(v)) {
			return v
		}
	}
	return nil
}

func valueOr(v string, ok bool, fallback string) string {
	if !ok {
		return fallback
	}
	return v
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
