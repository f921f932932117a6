package selectbox_test

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachmap/reachmap/internal/widget/selectbox"
)

func profileOptions() []selectbox.Option {
	return []selectbox.Option{
		{Title: "On foot", Value: "foot-walking"},
		{Title: "Bicycle", Value: "cycling-regular"},
		{Title: "Car", Value: "driving-car", Hint: "uses motorways"},
	}
}

func roomyLayout() *selectbox.FixedLayout {
	return &selectbox.FixedLayout{
		Trigger:    selectbox.Rect{Top: 100, Left: 20, Width: 200, Height: 30},
		Viewport:   900,
		ItemHeight: 24,
	}
}

func TestSelect_SelectionClosesAndKeepsSingleSelection(t *testing.T) {
	var got []selectbox.Selection
	s := selectbox.New(selectbox.Config{
		ID:       "profile",
		Items:    profileOptions(),
		Layout:   roomyLayout(),
		OnSelect: func(sel selectbox.Selection) { got = append(got, sel) },
	})

	_, err := s.Open()
	require.NoError(t, err)
	_, err = s.Select("cycling-regular", "option-1")
	require.NoError(t, err)

	_, err = s.Open()
	require.NoError(t, err)
	opt, err := s.Select("driving-car", "option-2")
	require.NoError(t, err)

	selected, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, opt, selected)
	assert.Equal(t, "driving-car", selected.Value)
	assert.False(t, s.IsOpen())
	assert.Nil(t, s.Overlay())

	require.Len(t, got, 2)
	assert.Equal(t, "option-2", got[1].Target)
	assert.Equal(t, "Car", got[1].Option.Title)
}

func TestSelect_SelectRequiresOpenOverlay(t *testing.T) {
	s := selectbox.New(selectbox.Config{ID: "profile", Items: profileOptions()})

	_, err := s.Select("foot-walking", "")
	assert.ErrorIs(t, err, selectbox.ErrClosed)

	_, _ = s.Open()
	_, err = s.Select("walking-on-water", "")
	assert.ErrorIs(t, err, selectbox.ErrUnknownOption)
	assert.True(t, s.IsOpen())
}

func TestSelect_DuplicateValuesFirstMatchWins(t *testing.T) {
	s := selectbox.New(selectbox.Config{
		ID: "dup",
		Items: []selectbox.Option{
			{Title: "First", Value: "x"},
			{Title: "Second", Value: "x"},
		},
	})

	_, _ = s.Open()
	opt, err := s.Select("x", "")
	require.NoError(t, err)
	assert.Equal(t, "First", opt.Title)

	require.True(t, s.SetValue("X"))
	sel, _ := s.Selected()
	assert.Equal(t, "First", sel.Title)
}

func TestSelect_DropsOptionsWithoutValue(t *testing.T) {
	s := selectbox.New(selectbox.Config{
		ID:    "p",
		Items: append(profileOptions(), selectbox.Option{Title: "Header"}),
	})
	assert.Len(t, s.Items(), 3)
}

func TestSelect_DefaultValue(t *testing.T) {
	s := selectbox.New(selectbox.Config{ID: "p", Items: profileOptions(), DefaultValue: "FOOT-WALKING"})
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "foot-walking", sel.Value)
}

func TestSelect_ToggleClosesWhenOpen(t *testing.T) {
	s := selectbox.New(selectbox.Config{ID: "p", Items: profileOptions()})

	o, err := s.Toggle()
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.True(t, s.IsOpen())

	o, err = s.Toggle()
	require.NoError(t, err)
	assert.Nil(t, o)
	assert.False(t, s.IsOpen())
}

func TestSelect_DisabledDoesNotOpen(t *testing.T) {
	s := selectbox.New(selectbox.Config{ID: "p", Items: profileOptions(), Disabled: true})
	o, err := s.Open()
	require.NoError(t, err)
	assert.Nil(t, o)
	assert.False(t, s.IsOpen())

	s.Enable()
	_, _ = s.Open()
	assert.True(t, s.IsOpen())
	s.Disable()
	assert.False(t, s.IsOpen())
}

func TestRegistry_OpeningSecondWidgetClosesFirst(t *testing.T) {
	reg := selectbox.NewRegistry()
	a := selectbox.New(selectbox.Config{ID: "a", Items: profileOptions(), Registry: reg})
	b := selectbox.New(selectbox.Config{ID: "b", Items: profileOptions(), Registry: reg})

	_, _ = a.Open()
	require.Same(t, a, reg.Active())

	_, _ = b.Open()
	assert.False(t, a.IsOpen())
	assert.True(t, b.IsOpen())
	assert.Same(t, b, reg.Active())

	b.Close()
	assert.Nil(t, reg.Active())
}

func TestRegistry_OutsideClick(t *testing.T) {
	reg := selectbox.NewRegistry()
	s := selectbox.New(selectbox.Config{ID: "crs", Items: profileOptions(), Registry: reg, Search: true})

	assert.False(t, reg.OutsideClick("body"), "nothing open")

	_, _ = s.Open()
	assert.False(t, reg.OutsideClick(s.SearchTarget()), "search field clicks keep the overlay")
	assert.True(t, s.IsOpen())

	assert.True(t, reg.OutsideClick("map"))
	assert.False(t, s.IsOpen())
	assert.Nil(t, reg.Active())
}

func TestRegistry_UnregisterClosesActive(t *testing.T) {
	reg := selectbox.NewRegistry()
	s := selectbox.New(selectbox.Config{ID: "p", Items: profileOptions(), Registry: reg})
	require.Equal(t, 1, reg.Len())

	_, _ = s.Open()
	reg.Unregister(s)

	assert.False(t, s.IsOpen())
	assert.Nil(t, reg.Active())
	assert.Equal(t, 0, reg.Len())
}

func TestSelect_OpensBelowTriggerWhenThereIsRoom(t *testing.T) {
	s := selectbox.New(selectbox.Config{ID: "p", Items: profileOptions(), Layout: roomyLayout()})

	o, err := s.Open()
	require.NoError(t, err)

	assert.False(t, o.DropUp)
	assert.Equal(t, 130.0, o.Top)
	assert.Equal(t, 20.0, o.Left)
	assert.Equal(t, 200.0, o.Width)
	assert.Zero(t, o.MarginTop)
}

func TestSelect_FlipsUpWhenSpaceBelowIsTooSmall(t *testing.T) {
	layout := &selectbox.FixedLayout{
		Trigger:    selectbox.Rect{Top: 500, Left: 0, Width: 180, Height: 30},
		Viewport:   600,
		ItemHeight: 30,
	}
	s := selectbox.New(selectbox.Config{ID: "p", Items: append(profileOptions(),
		selectbox.Option{Title: "Bus", Value: "bus"},
		selectbox.Option{Title: "Tram", Value: "tram"},
	), Layout: layout})

	o, err := s.Open()
	require.NoError(t, err)

	height := 5 * 30.0
	assert.True(t, o.DropUp)
	assert.LessOrEqual(t, o.MarginTop, -height)
	assert.Less(t, o.EffectiveTop(), layout.Trigger.Top, "top edge is above the trigger")
	assert.LessOrEqual(t, o.EffectiveTop()+height, layout.Trigger.Top, "overlay does not cover the trigger")
}

func TestSelect_BigFlipAddsHeaderAllowance(t *testing.T) {
	layout := &selectbox.FixedLayout{
		Trigger:    selectbox.Rect{Top: 560, Height: 40},
		Viewport:   620,
		ItemHeight: 30,
	}
	s := selectbox.New(selectbox.Config{ID: "p", Items: profileOptions(), Layout: layout, Big: true})

	o, _ := s.Open()
	require.True(t, o.DropUp)
	assert.Equal(t, -(90.0 + 40.0), o.MarginTop)
}

func TestSelect_CapsLongLists(t *testing.T) {
	items := make([]selectbox.Option, 12)
	for i := range items {
		items[i] = selectbox.Option{Title: fmt.Sprintf("EPSG:%d", 3000+i), Value: fmt.Sprint(3000 + i)}
	}

	t.Run("measured", func(t *testing.T) {
		s := selectbox.New(selectbox.Config{ID: "crs", Items: items, Layout: &selectbox.FixedLayout{
			Viewport: 1000, ItemHeight: 20,
		}})
		o, _ := s.Open()
		assert.True(t, o.Scrollable)
		assert.Equal(t, 2.0+8*20, o.MaxHeight)
		assert.Len(t, o.Items, 12)
	})

	t.Run("custom threshold", func(t *testing.T) {
		s := selectbox.New(selectbox.Config{ID: "crs", Items: items, VisibleItems: 4, Layout: &selectbox.FixedLayout{
			Viewport: 1000, ItemHeight: 20,
		}})
		o, _ := s.Open()
		assert.Equal(t, 2.0+4*20, o.MaxHeight)
	})

	t.Run("fallback", func(t *testing.T) {
		s := selectbox.New(selectbox.Config{ID: "crs", Items: items, Layout: &selectbox.FixedLayout{
			Viewport: 1000, ItemHeight: 20, Unmeasurable: true,
		}})
		o, _ := s.Open()
		assert.Equal(t, float64(selectbox.FallbackListHeight), o.MaxHeight)
	})

	t.Run("short list is not capped", func(t *testing.T) {
		s := selectbox.New(selectbox.Config{ID: "p", Items: profileOptions(), Layout: roomyLayout()})
		o, _ := s.Open()
		assert.False(t, o.Scrollable)
		assert.Zero(t, o.MaxHeight)
	})
}

func TestSelect_ZIndexComputedOnEveryOpen(t *testing.T) {
	layout := roomyLayout()
	layout.ZIndex = []float64{1, 10, math.NaN(), 1000}
	s := selectbox.New(selectbox.Config{ID: "p", Items: profileOptions(), Layout: layout})

	o, _ := s.Open()
	assert.Equal(t, 1001, o.ZIndex)
	s.Close()

	layout.ZIndex = append(layout.ZIndex, 5000)
	o, _ = s.Open()
	assert.Equal(t, 5001, o.ZIndex)

	layout.ZIndex = nil
	s.Close()
	o, _ = s.Open()
	assert.Equal(t, 1, o.ZIndex)
}

func TestSelect_SearchFiltersWithoutMutatingItems(t *testing.T) {
	items := []selectbox.Option{
		{Title: "WGS 84", Value: "4326"},
		{Title: "WGS 84 / Pseudo-Mercator", Value: "3857"},
		{Title: "Pulkovo 1942", Value: "4284"},
		{Title: "ETRS89", Value: "4258"},
	}
	s := selectbox.New(selectbox.Config{ID: "crs", Items: items, Search: true})

	_, err := s.Search("wgs")
	assert.ErrorIs(t, err, selectbox.ErrClosed)

	_, _ = s.Open()
	for _, q := range []string{"wgs", "MERCATOR", "o", "", "zzz"} {
		visible, err := s.Search(q)
		require.NoError(t, err)

		var want []selectbox.Option
		for _, it := range items {
			if strings.Contains(strings.ToLower(it.Title), strings.ToLower(q)) {
				want = append(want, it)
			}
		}
		assert.ElementsMatch(t, want, visible, "query %q", q)
		assert.Equal(t, items, s.Items(), "canonical set untouched")
	}

	_, _ = s.Search("pulk")
	opt, err := s.Select("4284", "")
	require.NoError(t, err)
	assert.Equal(t, "Pulkovo 1942", opt.Title)

	_, err = s.Open()
	require.NoError(t, err)
	assert.Len(t, s.Visible(), 4, "query resets on reopen")
}

func TestSelect_StateOverlayIsDetached(t *testing.T) {
	s := selectbox.New(selectbox.Config{ID: "profile", Items: profileOptions(), Search: true})
	_, err := s.Open()
	require.NoError(t, err)

	st := s.State()
	require.NotNil(t, st.Overlay)
	assert.NotSame(t, s.Overlay(), st.Overlay)
	assert.Nil(t, st.Overlay.Search)
	before := append([]selectbox.Option(nil), st.Overlay.Items...)

	_, err = s.Search("zzz")
	require.NoError(t, err)

	assert.Equal(t, before, st.Overlay.Items, "snapshot must not follow later searches")
	assert.Empty(t, s.State().Overlay.Items)
}

func TestSelect_SearchDisabled(t *testing.T) {
	s := selectbox.New(selectbox.Config{ID: "p", Items: profileOptions()})
	_, _ = s.Open()
	_, err := s.Search("car")
	assert.ErrorIs(t, err, selectbox.ErrSearchDisabled)
}

func TestSelect_RequiredErrorState(t *testing.T) {
	s := selectbox.New(selectbox.Config{
		ID:           "profile",
		Items:        profileOptions(),
		Required:     true,
		RequiredText: "Choose a profile",
	})

	assert.False(t, s.Validate())
	assert.True(t, s.InError())
	assert.Equal(t, "Choose a profile", s.State().ErrorText)

	_, _ = s.Open()
	_, err := s.Select("foot-walking", "")
	require.NoError(t, err)

	assert.False(t, s.InError())
	assert.True(t, s.Validate())
}
