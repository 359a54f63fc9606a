package library

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/orian/promptlib/models"
	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidAxis is returned by SetAxis for an unknown axis name.
	ErrInvalidAxis = errors.New("invalid axis")

	// ErrRecordNotFound is returned when an operation needs an existing record.
	ErrRecordNotFound = errors.New("record not found")
)

// Card is a record on the current page together with its favorite flag.
type Card struct {
	models.PromptRecord
	Favorite bool `json:"favorite"`
}

// View is everything a front-end needs to draw the library after an action.
type View struct {
	State models.ViewState `json:"state"`
	Items []Card           `json:"items"`

	Page       int  `json:"page"`
	TotalPages int  `json:"totalPages"`
	HasPrev    bool `json:"hasPrev"`
	HasNext    bool `json:"hasNext"`

	// Total is the collection size, Filtered the number of matches and
	// Showing the number of cards on this page.
	Total    int `json:"total"`
	Filtered int `json:"filtered"`
	Showing  int `json:"showing"`

	PrimaryAxis      models.Axis `json:"primaryAxis"`
	SecondaryAxis    models.Axis `json:"secondaryAxis"`
	PrimaryOptions   []string    `json:"primaryOptions"`
	SecondaryOptions []string    `json:"secondaryOptions"`
}

// Controller owns the view state and the record store and applies user
// actions to them.
//
// Each action updates the state, resets the page when the action changes
// what is filtered, recomputes the view from the store and persists the
// state. Controller is not safe for concurrent use; callers serialise access.
type Controller struct {
	store     *Store
	slots     models.SlotStore
	events    models.EventLog
	state     models.ViewState
	normalize Normalizer
}

// NewController loads the persisted view state over the defaults and opens
// the record store. events may be nil.
func NewController(ctx context.Context, slots models.SlotStore, events models.EventLog, seeds []models.PromptRecord) *Controller {
	state := models.DefaultViewState()
	loaded := models.DefaultViewState()
	if loadSlot(ctx, slots, models.SlotConfig, &loaded) {
		state = loaded
	}
	state.Sanitize()

	return &Controller{
		store:     OpenStore(ctx, slots, seeds),
		slots:     slots,
		events:    events,
		state:     state,
		normalize: Normalize,
	}
}

// Store returns the underlying record store.
func (c *Controller) Store() *Store {
	return c.store
}

// State returns a copy of the current view state.
func (c *Controller) State() models.ViewState {
	return copyState(c.state)
}

// View recomputes the derived view without changing anything persisted.
func (c *Controller) View() View {
	return c.render()
}

// SetQuery changes the free-text search.
func (c *Controller) SetQuery(ctx context.Context, query string) (View, error) {
	c.state.Query = query
	c.state.Page = 1
	return c.commit(ctx)
}

// SetAxis switches the primary grouping axis and clears both selections,
// since the old values may not exist on the new axis.
func (c *Controller) SetAxis(ctx context.Context, axis models.Axis) (View, error) {
	if !axis.Valid() {
		return c.render(), fmt.Errorf("%w: %q", ErrInvalidAxis, axis)
	}
	c.state.Axis = axis
	c.state.Primary = models.AllValues
	c.state.Secondary = models.AllValues
	c.state.Page = 1
	return c.commit(ctx)
}

// SetPrimary selects a value on the primary axis.
func (c *Controller) SetPrimary(ctx context.Context, value string) (View, error) {
	c.state.Primary = orAll(value)
	c.state.Page = 1
	return c.commit(ctx)
}

// SetSecondary selects a value on the secondary axis.
func (c *Controller) SetSecondary(ctx context.Context, value string) (View, error) {
	c.state.Secondary = orAll(value)
	c.state.Page = 1
	return c.commit(ctx)
}

// SetPageSize changes the page size; values below 1 become 1.
func (c *Controller) SetPageSize(ctx context.Context, size int) (View, error) {
	c.state.PageSize = max(size, 1)
	c.state.Page = 1
	return c.commit(ctx)
}

// SetFavoritesOnly restricts the view to favorites.
func (c *Controller) SetFavoritesOnly(ctx context.Context, only bool) (View, error) {
	c.state.FavoritesOnly = only
	c.state.Page = 1
	return c.commit(ctx)
}

// ToggleFavoritesOnly flips the favorites-only filter.
func (c *Controller) ToggleFavoritesOnly(ctx context.Context) (View, error) {
	return c.SetFavoritesOnly(ctx, !c.state.FavoritesOnly)
}

// AddTag adds a tag filter. Adding an active or empty tag changes nothing.
func (c *Controller) AddTag(ctx context.Context, tag string) (View, error) {
	tag = models.ParseTag(tag)
	if tag == "" || models.HasTag(c.state.TagFilters, tag) {
		return c.render(), nil
	}
	c.state.TagFilters = append(c.state.TagFilters, tag)
	c.state.Page = 1
	return c.commit(ctx)
}

// RemoveTag drops a tag filter. Removing an inactive tag changes nothing.
func (c *Controller) RemoveTag(ctx context.Context, tag string) (View, error) {
	tag = models.ParseTag(tag)
	i := slices.Index(c.state.TagFilters, tag)
	if i < 0 {
		return c.render(), nil
	}
	c.state.TagFilters = slices.Delete(c.state.TagFilters, i, i+1)
	c.state.Page = 1
	return c.commit(ctx)
}

// NextPage advances one page. On the last page it changes nothing.
func (c *Controller) NextPage(ctx context.Context) (View, error) {
	v := c.render()
	if !v.HasNext {
		return v, nil
	}
	c.state.Page = v.Page + 1
	return c.commit(ctx)
}

// PrevPage goes back one page, stopping at page 1.
func (c *Controller) PrevPage(ctx context.Context) (View, error) {
	c.state.Page = max(1, c.state.Page-1)
	return c.commit(ctx)
}

// GoToPage jumps to page; out-of-range pages are clamped.
func (c *Controller) GoToPage(ctx context.Context, page int) (View, error) {
	c.state.Page = max(1, page)
	return c.commit(ctx)
}

// ToggleTheme flips between the light and dark theme.
func (c *Controller) ToggleTheme(ctx context.Context) (View, error) {
	if c.state.Theme == models.ThemeLight {
		c.state.Theme = models.ThemeDark
	} else {
		c.state.Theme = models.ThemeLight
	}
	return c.commit(ctx)
}

// ToggleFavorite flips the favorite flag of id and returns the new flag.
func (c *Controller) ToggleFavorite(ctx context.Context, id int64) (bool, View, error) {
	favorite, err := c.store.ToggleFavorite(ctx, id)
	if err != nil {
		return favorite, c.render(), err
	}
	v, err := c.commit(ctx)
	return favorite, v, err
}

// FocusSimilar groups by persona and selects the persona and theme of the
// record with the given id.
func (c *Controller) FocusSimilar(ctx context.Context, id int64) (View, error) {
	r, ok := c.store.Get(id)
	if !ok {
		return c.render(), fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	c.state.Axis = models.AxisPersona
	c.state.Primary = r.Persona
	c.state.Secondary = r.Theme
	c.state.Page = 1
	return c.commit(ctx)
}

// Import replaces the collection with the records of an import document.
// On any parse error the collection is left untouched and an *ImportError
// is returned.
func (c *Controller) Import(ctx context.Context, data []byte, kind models.EventKind) (View, int, error) {
	records, err := ParseImport(data)
	if err != nil {
		return c.render(), 0, err
	}
	if err := c.store.ReplaceAll(ctx, records); err != nil {
		return c.render(), 0, err
	}
	c.recordEvent(ctx, kind, len(records))

	c.state.Page = 1
	v, err := c.commit(ctx)
	return v, len(records), err
}

// Export encodes the collection as indented JSON.
func (c *Controller) Export() ([]byte, error) {
	return Export(c.store.Records())
}

// Generate appends ClampCount(n) synthetic records drawn from the current
// axis values. A nil rng uses a randomly seeded source.
func (c *Controller) Generate(ctx context.Context, n int, rng *rand.Rand) (View, int, error) {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	records := Generate(VocabularyFrom(c.store.Records()), n, c.store.NextID(), rng)
	if err := c.store.Append(ctx, records); err != nil {
		return c.render(), 0, err
	}
	c.recordEvent(ctx, models.EventGenerate, len(records))

	v, err := c.commit(ctx)
	return v, len(records), err
}

// Clear empties the collection. Favorites are kept.
func (c *Controller) Clear(ctx context.Context) (View, error) {
	removed := c.store.Len()
	if err := c.store.ReplaceAll(ctx, nil); err != nil {
		return c.render(), err
	}
	c.recordEvent(ctx, models.EventClear, removed)

	c.state.Page = 1
	return c.commit(ctx)
}

func (c *Controller) recordEvent(ctx context.Context, kind models.EventKind, count int) {
	if c.events == nil {
		return
	}
	event := &models.LibraryEvent{Kind: kind, Count: count, CreatedAt: time.Now()}
	if err := c.events.RecordEvent(ctx, event); err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("Failed to record library event")
	}
}

// commit recomputes the view and persists the state it settled on.
func (c *Controller) commit(ctx context.Context) (View, error) {
	v := c.render()
	data, err := json.Marshal(c.state)
	if err != nil {
		return v, fmt.Errorf("failed to marshal view state: %w", err)
	}
	if err := c.slots.SaveSlot(ctx, models.SlotConfig, data); err != nil {
		return v, fmt.Errorf("failed to save view state: %w", err)
	}
	return v, nil
}

// render derives the view from the store and state. The requested page is
// clamped into range and written back to the state.
func (c *Controller) render() View {
	records := c.store.Records()
	filtered := Filter(records, c.normalize, CriteriaFromState(c.state), c.store)
	page := Paginate(filtered, c.state.PageSize, c.state.Page)
	c.state.Page = page.Number

	items := make([]Card, len(page.Items))
	for i, r := range page.Items {
		items[i] = Card{PromptRecord: r, Favorite: c.store.IsFavorite(r.ID)}
	}

	primary := c.state.Axis
	secondary := primary.Secondary()
	return View{
		State:            copyState(c.state),
		Items:            items,
		Page:             page.Number,
		TotalPages:       page.TotalPages,
		HasPrev:          page.HasPrev(),
		HasNext:          page.HasNext(),
		Total:            len(records),
		Filtered:         page.Total,
		Showing:          len(items),
		PrimaryAxis:      primary,
		SecondaryAxis:    secondary,
		PrimaryOptions:   options(records, primary),
		SecondaryOptions: options(records, secondary),
	}
}

// options lists AllValues followed by the sorted distinct values of axis.
func options(records []models.PromptRecord, axis models.Axis) []string {
	values := distinct(records, axis)
	sort.Strings(values)
	return append([]string{models.AllValues}, values...)
}

func orAll(value string) string {
	if value == "" {
		return models.AllValues
	}
	return value
}

func copyState(s models.ViewState) models.ViewState {
	s.TagFilters = slices.Clone(s.TagFilters)
	if s.TagFilters == nil {
		s.TagFilters = []string{}
	}
	return s
}
