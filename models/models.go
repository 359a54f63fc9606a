// Package models defines the core data types for promptlib,
// a browsable library of text prompts grouped by persona, theme and post type.
package models

import (
	"slices"
	"time"
)

// PromptRecord is a single prompt in the library.
//
// Records are identified by ID, which favorites reference. The three
// categorical fields are open vocabularies: any string is a legal value.
type PromptRecord struct {
	// ID is unique within the current collection.
	ID int64 `json:"id"`

	// Title is the display title.
	Title string `json:"title"`

	// Persona, Theme and PostType are the three grouping axes.
	Persona  string `json:"persona"`
	Theme    string `json:"theme"`
	PostType string `json:"postType"`

	// Tags are free-form labels, usually lower-case. Order is kept and
	// duplicates are allowed.
	Tags []string `json:"tags"`

	// Body is the prompt text itself.
	Body string `json:"body"`
}

// Axis names one of the three categorical fields of a PromptRecord.
type Axis string

const (
	AxisPersona  Axis = "persona"
	AxisTheme    Axis = "theme"
	AxisPostType Axis = "postType"
)

// AllValues is the selector value meaning "no filter on this axis".
const AllValues = "all"

// Axes lists every axis in rotation order.
var Axes = []Axis{AxisPersona, AxisTheme, AxisPostType}

// Valid reports whether a is one of the known axes.
func (a Axis) Valid() bool {
	return slices.Contains(Axes, a)
}

// Secondary returns the axis paired with a as the secondary grouping.
// The pairing rotates persona -> theme -> postType -> persona.
func (a Axis) Secondary() Axis {
	switch a {
	case AxisTheme:
		return AxisPostType
	case AxisPostType:
		return AxisPersona
	default:
		return AxisTheme
	}
}

// Value returns the field of r selected by a.
func (a Axis) Value(r PromptRecord) string {
	switch a {
	case AxisTheme:
		return r.Theme
	case AxisPostType:
		return r.PostType
	default:
		return r.Persona
	}
}

// Theme is the cosmetic colour scheme of the front-end.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ViewState is the persisted browsing configuration.
type ViewState struct {
	Axis          Axis     `json:"axis"`
	Query         string   `json:"query"`
	Primary       string   `json:"primaryValue"`
	Secondary     string   `json:"secondaryValue"`
	PageSize      int      `json:"pageSize"`
	Page          int      `json:"page"`
	FavoritesOnly bool     `json:"favoritesOnly"`
	TagFilters    []string `json:"tagFilters"`
	Theme         Theme    `json:"theme"`
}

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 30

// DefaultViewState returns the configuration used before anything is persisted.
func DefaultViewState() ViewState {
	return ViewState{
		Axis:       AxisPersona,
		Primary:    AllValues,
		Secondary:  AllValues,
		PageSize:   DefaultPageSize,
		Page:       1,
		TagFilters: []string{},
		Theme:      ThemeDark,
	}
}

// Sanitize replaces out-of-range fields with their defaults.
func (v *ViewState) Sanitize() {
	if !v.Axis.Valid() {
		v.Axis = AxisPersona
	}
	if v.Primary == "" {
		v.Primary = AllValues
	}
	if v.Secondary == "" {
		v.Secondary = AllValues
	}
	if v.PageSize < 1 {
		v.PageSize = DefaultPageSize
	}
	if v.Page < 1 {
		v.Page = 1
	}
	v.TagFilters = cleanTags(v.TagFilters)
	if v.Theme != ThemeLight && v.Theme != ThemeDark {
		v.Theme = ThemeDark
	}
}

// cleanTags runs ParseTag over persisted tag filters, dropping empty and
// repeated ones, so every stored filter is one RemoveTag can match.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = ParseTag(t)
		if t != "" && !HasTag(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// EventKind classifies a LibraryEvent.
type EventKind string

const (
	EventImport      EventKind = "import"
	EventWatchImport EventKind = "watch-import"
	EventGenerate    EventKind = "generate"
	EventClear       EventKind = "clear"
)

// LibraryEvent records a bulk change to the collection.
type LibraryEvent struct {
	// ID is the unique identifier for this event (UUID).
	ID string `json:"id"`

	// Kind is what happened.
	Kind EventKind `json:"kind"`

	// Count is the number of records imported, generated or removed.
	Count int `json:"count"`

	// CreatedAt is when the event happened.
	CreatedAt time.Time `json:"createdAt"`
}
