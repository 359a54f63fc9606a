package library

import (
	"strings"

	"github.com/orian/promptlib/models"
)

// Criteria selects records from the collection. Every non-empty field is a
// filter and a record has to pass all of them.
type Criteria struct {
	// Query is matched as a normalized substring of the record haystack.
	Query string

	// Axis picks the primary field; its Secondary is the paired field.
	Axis models.Axis

	// Primary and Secondary are compared exactly, without normalization.
	// models.AllValues or an empty string disables the comparison.
	Primary   string
	Secondary string

	// TagFilters must all be present among the record tags. Both sides are
	// cleaned with models.ParseTag first, so "#Promo" matches "promo".
	TagFilters []string

	// FavoritesOnly keeps only favorited records.
	FavoritesOnly bool
}

// CriteriaFromState extracts the filter fields of a ViewState.
func CriteriaFromState(v models.ViewState) Criteria {
	return Criteria{
		Query:         v.Query,
		Axis:          v.Axis,
		Primary:       v.Primary,
		Secondary:     v.Secondary,
		TagFilters:    v.TagFilters,
		FavoritesOnly: v.FavoritesOnly,
	}
}

// FavoriteSet answers favorite membership.
type FavoriteSet interface {
	IsFavorite(id int64) bool
}

// Haystack returns the searchable text of r: title, body, the three axis
// values and the tags, separated by spaces.
func Haystack(r models.PromptRecord) string {
	parts := make([]string, 0, 5+len(r.Tags))
	parts = append(parts, r.Title, r.Body, r.Persona, r.Theme, r.PostType)
	parts = append(parts, strings.Join(r.Tags, " "))
	return strings.Join(parts, " ")
}

// Filter returns the records matching c, in collection order.
// A nil normalize uses Normalize. favs may be nil when c.FavoritesOnly is false.
func Filter(records []models.PromptRecord, normalize Normalizer, c Criteria, favs FavoriteSet) []models.PromptRecord {
	if normalize == nil {
		normalize = Normalize
	}

	axis := c.Axis
	if !axis.Valid() {
		axis = models.AxisPersona
	}
	secondary := axis.Secondary()

	query := ""
	if c.Query != "" {
		query = normalize(c.Query)
	}

	wantTags := make([]string, len(c.TagFilters))
	for i, tag := range c.TagFilters {
		wantTags[i] = normalize(models.ParseTag(tag))
	}

	out := make([]models.PromptRecord, 0, len(records))
	for _, r := range records {
		if c.Query != "" && !strings.Contains(normalize(Haystack(r)), query) {
			continue
		}
		if selects(c.Primary) && axis.Value(r) != c.Primary {
			continue
		}
		if selects(c.Secondary) && secondary.Value(r) != c.Secondary {
			continue
		}
		if c.FavoritesOnly && (favs == nil || !favs.IsFavorite(r.ID)) {
			continue
		}
		if len(wantTags) > 0 && !hasAllTags(r.Tags, wantTags, normalize) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func selects(value string) bool {
	return value != "" && value != models.AllValues
}

// hasAllTags reports whether every normalized tag in want matches one of
// tags once both are cleaned with models.ParseTag.
func hasAllTags(tags, want []string, normalize Normalizer) bool {
	have := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		have[normalize(models.ParseTag(t))] = struct{}{}
	}
	for _, w := range want {
		if _, ok := have[w]; !ok {
			return false
		}
	}
	return true
}
