package library

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/orian/promptlib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, seeds []models.PromptRecord) (*Controller, *memStorage) {
	t.Helper()
	m := newMemStorage()
	return NewController(context.Background(), m, m, seeds), m
}

func TestNewControllerDefaults(t *testing.T) {
	c, _ := newTestController(t, DefaultSeeds())

	assert.Equal(t, models.DefaultViewState(), c.State())

	v := c.View()
	assert.Equal(t, 64, v.Total)
	assert.Equal(t, 64, v.Filtered)
	assert.Equal(t, 30, v.Showing)
	assert.Equal(t, 3, v.TotalPages)
	assert.Equal(t, models.AxisPersona, v.PrimaryAxis)
	assert.Equal(t, models.AxisTheme, v.SecondaryAxis)
	assert.Equal(t, models.AllValues, v.PrimaryOptions[0])
	assert.Len(t, v.PrimaryOptions, 9)
}

func TestNewControllerMergesPersistedState(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   func(s *models.ViewState)
	}{
		{
			name:   "partial state keeps defaults for missing keys",
			stored: `{"query":"seo","theme":"light"}`,
			want: func(s *models.ViewState) {
				s.Query = "seo"
				s.Theme = models.ThemeLight
			},
		},
		{
			name:   "invalid values are sanitized",
			stored: `{"axis":"colour","pageSize":0,"page":-2,"theme":"neon","primaryValue":""}`,
			want:   func(s *models.ViewState) {},
		},
		{
			name:   "corrupt state is ignored",
			stored: `{"query":`,
			want:   func(s *models.ViewState) {},
		},
		{
			name:   "full state is restored",
			stored: `{"axis":"theme","query":"x","primaryValue":"Law","secondaryValue":"Email","pageSize":5,"page":1,"favoritesOnly":true,"tagFilters":["law"],"theme":"dark"}`,
			want: func(s *models.ViewState) {
				s.Axis = models.AxisTheme
				s.Query = "x"
				s.Primary = "Law"
				s.Secondary = "Email"
				s.PageSize = 5
				s.FavoritesOnly = true
				s.TagFilters = []string{"law"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemStorage()
			m.slots[models.SlotConfig] = []byte(tt.stored)

			c := NewController(context.Background(), m, nil, DefaultSeeds())

			want := models.DefaultViewState()
			tt.want(&want)
			if diff := cmp.Diff(want, c.State()); diff != "" {
				t.Errorf("state mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestControllerRemovesUpperCasePersistedTag(t *testing.T) {
	ctx := context.Background()
	m := newMemStorage()
	m.slots[models.SlotConfig] = []byte(`{"tagFilters":["SEO","#Copywriter"]}`)

	c := NewController(ctx, m, m, DefaultSeeds())
	assert.Equal(t, []string{"seo", "copywriter"}, c.State().TagFilters)

	v, err := c.RemoveTag(ctx, "SEO")
	require.NoError(t, err)
	assert.Equal(t, []string{"copywriter"}, v.State.TagFilters)
	assert.Equal(t, 8, v.Filtered)
}

func TestControllerFilterActionsResetPage(t *testing.T) {
	ctx := context.Background()

	actions := map[string]func(c *Controller) (View, error){
		"query":          func(c *Controller) (View, error) { return c.SetQuery(ctx, "p") },
		"axis":           func(c *Controller) (View, error) { return c.SetAxis(ctx, models.AxisTheme) },
		"primary":        func(c *Controller) (View, error) { return c.SetPrimary(ctx, "P") },
		"secondary":      func(c *Controller) (View, error) { return c.SetSecondary(ctx, "T") },
		"page size":      func(c *Controller) (View, error) { return c.SetPageSize(ctx, 5) },
		"favorites only": func(c *Controller) (View, error) { return c.SetFavoritesOnly(ctx, false) },
		"add tag":        func(c *Controller) (View, error) { return c.AddTag(ctx, "p") },
		"similar":        func(c *Controller) (View, error) { return c.FocusSimilar(ctx, 1) },
	}

	for name, action := range actions {
		t.Run(name, func(t *testing.T) {
			c, m := newTestController(t, numbered(100))
			_, err := c.GoToPage(ctx, 3)
			require.NoError(t, err)
			require.Equal(t, 3, c.State().Page)

			v, err := action(c)
			require.NoError(t, err)
			assert.Equal(t, 1, v.Page)

			var stored models.ViewState
			m.decode(t, models.SlotConfig, &stored)
			assert.Equal(t, 1, stored.Page)
		})
	}
}

func TestControllerSetAxisClearsSelections(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, DefaultSeeds())

	_, err := c.SetPrimary(ctx, "Copywriter")
	require.NoError(t, err)
	_, err = c.SetSecondary(ctx, "Marketing")
	require.NoError(t, err)

	v, err := c.SetAxis(ctx, models.AxisPostType)
	require.NoError(t, err)

	assert.Equal(t, models.AxisPostType, v.State.Axis)
	assert.Equal(t, models.AllValues, v.State.Primary)
	assert.Equal(t, models.AllValues, v.State.Secondary)
	assert.Equal(t, models.AxisPersona, v.SecondaryAxis)
	assert.Equal(t, 64, v.Filtered)
}

func TestControllerSetAxisRejectsUnknownAxis(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, DefaultSeeds())

	_, err := c.SetAxis(ctx, models.Axis("colour"))
	assert.ErrorIs(t, err, ErrInvalidAxis)
	assert.Equal(t, models.AxisPersona, c.State().Axis)
	assert.Zero(t, m.saves[models.SlotConfig])
}

func TestControllerAxisFiltering(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, DefaultSeeds())

	v, err := c.SetPrimary(ctx, "Copywriter")
	require.NoError(t, err)
	assert.Equal(t, 8, v.Filtered)
	for _, card := range v.Items {
		assert.Equal(t, "Copywriter", card.Persona)
	}

	v, err = c.SetPrimary(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, models.AllValues, v.State.Primary, "empty selection means all")
	assert.Equal(t, 64, v.Filtered)
}

func TestControllerTags(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, DefaultSeeds())

	v, err := c.AddTag(ctx, " #Copywriter ")
	require.NoError(t, err)
	assert.Equal(t, []string{"copywriter"}, v.State.TagFilters)
	assert.Equal(t, 8, v.Filtered)
	saves := m.saves[models.SlotConfig]

	// Adding again or adding nothing is a no-op.
	v, err = c.AddTag(ctx, "copywriter")
	require.NoError(t, err)
	assert.Equal(t, []string{"copywriter"}, v.State.TagFilters)
	_, err = c.AddTag(ctx, "#")
	require.NoError(t, err)
	assert.Equal(t, saves, m.saves[models.SlotConfig])

	v, err = c.AddTag(ctx, "marketing")
	require.NoError(t, err)
	assert.Equal(t, []string{"copywriter", "marketing"}, v.State.TagFilters)

	v, err = c.RemoveTag(ctx, "copywriter")
	require.NoError(t, err)
	assert.Equal(t, []string{"marketing"}, v.State.TagFilters)

	v, err = c.RemoveTag(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"marketing"}, v.State.TagFilters)
}

func TestControllerTagsWithHashPrefix(t *testing.T) {
	ctx := context.Background()
	promo := record(1, "Copywriter", "Marketing", "Email")
	promo.Tags = []string{"#promo", "email"}
	other := record(2, "Copywriter", "Marketing", "Email")
	c, _ := newTestController(t, []models.PromptRecord{promo, other})

	v, err := c.AddTag(ctx, "#promo")
	require.NoError(t, err)
	assert.Equal(t, []string{"promo"}, v.State.TagFilters)
	assert.Equal(t, 1, v.Filtered)
	assert.Equal(t, int64(1), v.Items[0].ID)

	v, err = c.RemoveTag(ctx, "#promo")
	require.NoError(t, err)
	assert.Empty(t, v.State.TagFilters)
	assert.Equal(t, 2, v.Filtered)
}

func TestControllerViewDoesNotAliasState(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, DefaultSeeds())

	v, err := c.AddTag(ctx, "seo")
	require.NoError(t, err)
	v.State.TagFilters[0] = "changed"

	assert.Equal(t, []string{"seo"}, c.State().TagFilters)
}

func TestControllerPaging(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, numbered(25))

	_, err := c.SetPageSize(ctx, 10)
	require.NoError(t, err)

	v, err := c.NextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Page)
	assert.Equal(t, []int64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, cardIDs(v.Items))

	v, err = c.NextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Page)
	assert.Equal(t, 5, v.Showing)
	assert.False(t, v.HasNext)
	saves := m.saves[models.SlotConfig]

	v, err = c.NextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Page, "next on the last page stays put")
	assert.Equal(t, saves, m.saves[models.SlotConfig])

	v, err = c.GoToPage(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Page)
	assert.Equal(t, 3, c.State().Page, "clamped page is written back")

	for range 5 {
		v, err = c.PrevPage(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, v.Page)
	assert.False(t, v.HasPrev)
}

func TestControllerPageIsClampedWhenResultsShrink(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, numbered(25))

	_, err := c.SetPageSize(ctx, 10)
	require.NoError(t, err)
	_, err = c.GoToPage(ctx, 3)
	require.NoError(t, err)

	require.NoError(t, c.Store().ReplaceAll(ctx, numbered(4)))
	v := c.View()
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, 4, v.Showing)
	assert.Equal(t, 1, c.State().Page)
}

func TestControllerFavorites(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, numbered(5))

	favorite, v, err := c.ToggleFavorite(ctx, 3)
	require.NoError(t, err)
	assert.True(t, favorite)
	assert.True(t, v.Items[2].Favorite)
	assert.False(t, v.Items[0].Favorite)

	v, err = c.ToggleFavoritesOnly(ctx)
	require.NoError(t, err)
	assert.True(t, v.State.FavoritesOnly)
	assert.Equal(t, []int64{3}, cardIDs(v.Items))

	var favs []int64
	m.decode(t, models.SlotFavorites, &favs)
	assert.Equal(t, []int64{3}, favs)

	favorite, v, err = c.ToggleFavorite(ctx, 3)
	require.NoError(t, err)
	assert.False(t, favorite)
	assert.Empty(t, v.Items)
	assert.Equal(t, 1, v.TotalPages)
}

func TestControllerFocusSimilar(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, DefaultSeeds())

	_, err := c.SetAxis(ctx, models.AxisPostType)
	require.NoError(t, err)

	target, ok := c.Store().Get(10)
	require.True(t, ok)

	v, err := c.FocusSimilar(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, models.AxisPersona, v.State.Axis)
	assert.Equal(t, target.Persona, v.State.Primary)
	assert.Equal(t, target.Theme, v.State.Secondary)
	assert.Contains(t, cardIDs(v.Items), int64(10))

	_, err = c.FocusSimilar(ctx, 999)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestControllerToggleTheme(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, numbered(50))

	_, err := c.GoToPage(ctx, 2)
	require.NoError(t, err)

	v, err := c.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ThemeLight, v.State.Theme)
	assert.Equal(t, 2, v.Page, "theme does not reset the page")

	v, err = c.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ThemeDark, v.State.Theme)
}

func TestControllerImport(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, numbered(50))

	_, err := c.GoToPage(ctx, 2)
	require.NoError(t, err)

	v, n, err := c.Import(ctx, []byte(`[{"persona":"X"},{"persona":"Y","title":"Custom"}]`), models.EventImport)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, v.Total)
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, []string{models.AllValues, "X", "Y"}, v.PrimaryOptions)

	require.Len(t, m.events, 1)
	assert.Equal(t, models.EventImport, m.events[0].Kind)
	assert.Equal(t, 2, m.events[0].Count)
}

func TestControllerImportFailureLeavesCollection(t *testing.T) {
	ctx := context.Background()

	inputs := []string{`{"id":1}`, `not json`, `[{"id":1}, "x"]`}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			c, m := newTestController(t, numbered(7))
			before := c.Store().Records()

			v, n, err := c.Import(ctx, []byte(input), models.EventImport)
			require.Error(t, err)

			var importErr *ImportError
			assert.True(t, errors.As(err, &importErr))
			assert.Zero(t, n)
			assert.Equal(t, 7, v.Total)
			assert.Equal(t, ids(before), ids(c.Store().Records()))
			assert.Empty(t, m.events)
			assert.Zero(t, m.saves[models.SlotData])
		})
	}
}

func TestControllerGenerate(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, DefaultSeeds())

	_, err := c.GoToPage(ctx, 2)
	require.NoError(t, err)

	v, n, err := c.Generate(ctx, 10, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, 74, v.Total)
	assert.Equal(t, 2, v.Page, "generate keeps the current page")

	records := c.Store().Records()
	assert.Equal(t, int64(65), records[64].ID)
	assert.Equal(t, int64(74), records[73].ID)

	vocab := DefaultVocabulary()
	for _, r := range records[64:] {
		assert.Contains(t, vocab.Personas, r.Persona)
	}

	require.Len(t, m.events, 1)
	assert.Equal(t, models.EventGenerate, m.events[0].Kind)

	_, n, err = c.Generate(ctx, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, MinGenerate, n)
}

func TestControllerClear(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, numbered(40))

	_, _, err := c.ToggleFavorite(ctx, 7)
	require.NoError(t, err)
	_, err = c.GoToPage(ctx, 2)
	require.NoError(t, err)

	v, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Total)
	assert.Empty(t, v.Items)
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, []string{models.AllValues}, v.PrimaryOptions)

	require.Len(t, m.events, 1)
	assert.Equal(t, models.EventClear, m.events[0].Kind)
	assert.Equal(t, 40, m.events[0].Count)

	// Favorites survive and reattach when the id comes back.
	_, _, err = c.Import(ctx, []byte(`[{"id":7,"title":"back"}]`), models.EventImport)
	require.NoError(t, err)
	v = c.View()
	require.Len(t, v.Items, 1)
	assert.True(t, v.Items[0].Favorite)
}

func TestControllerGenerateAfterClearStartsAtOne(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, DefaultSeeds())

	_, err := c.Clear(ctx)
	require.NoError(t, err)

	_, _, err = c.Generate(ctx, 3, rand.New(rand.NewPCG(5, 6)))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, ids(c.Store().Records()))
	vocab := DefaultVocabulary()
	for _, r := range c.Store().Records() {
		assert.Contains(t, vocab.Themes, r.Theme, "empty collection falls back to the built-in vocabulary")
	}
}

func TestControllerSaveErrorKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	c, m := newTestController(t, DefaultSeeds())
	m.saveErr = errSave

	v, err := c.SetQuery(ctx, "seo")
	assert.ErrorIs(t, err, errSave)
	assert.Equal(t, "seo", v.State.Query)
	assert.Equal(t, "seo", c.State().Query)
}

func TestControllerPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	m := newMemStorage()
	c := NewController(ctx, m, m, DefaultSeeds())

	_, err := c.SetAxis(ctx, models.AxisTheme)
	require.NoError(t, err)
	_, err = c.SetPrimary(ctx, "Law")
	require.NoError(t, err)
	_, _, err = c.ToggleFavorite(ctx, 5)
	require.NoError(t, err)
	_, _, err = c.Generate(ctx, 2, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)

	reopened := NewController(ctx, m, m, nil)
	if diff := cmp.Diff(c.State(), reopened.State()); diff != "" {
		t.Errorf("state mismatch after restart (-before +after):\n%s", diff)
	}
	assert.Equal(t, ids(c.Store().Records()), ids(reopened.Store().Records()))
	assert.True(t, reopened.Store().IsFavorite(5))
}
