package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogstats/internal/analytics"
	"blogstats/internal/testsupport"
	"blogstats/internal/timeframe"
)

func percentageSum(items []analytics.BreakdownItem) int {
	sum := 0
	for _, item := range items {
		sum += item.Percentage
	}
	return sum
}

func TestGetTrafficSources(t *testing.T) {
	t.Run("classifies and excludes internal traffic", func(t *testing.T) {
		engine, db := setupEngine(t)

		at := now.Add(-time.Hour)
		refs := map[string]int{
			"":                                  2,
			"https://www.google.com/search?q=x": 3,
			"https://myblog.com/blog/other":     5,
			"https://t.co/abc":                  1,
			"https://someblog.dev/post":         1,
		}
		for ref, n := range refs {
			for i := 0; i < n; i++ {
				view(t, db, testsupport.PageViewFixture{Referrer: ref, At: at})
			}
		}

		items, err := engine.GetTrafficSources(ctx(), timeframe.PeriodWeek)
		require.NoError(t, err)

		require.Len(t, items, 4)
		assert.Equal(t, analytics.BreakdownItem{Name: "Search", Label: "Search", Count: 3, Percentage: 43}, items[0])
		assert.Equal(t, analytics.BreakdownItem{Name: "Direct", Label: "Direct", Count: 2, Percentage: 29}, items[1])
		assert.Equal(t, "Referral", items[2].Name)
		assert.Equal(t, 14, items[2].Percentage)
		assert.Equal(t, "Social", items[3].Name)
		for _, item := range items {
			assert.NotEqual(t, "Internal", item.Name)
		}
		assert.InDelta(t, 100, percentageSum(items), float64(len(items)))
	})

	t.Run("empty window gives an empty list", func(t *testing.T) {
		engine, db := setupEngine(t)
		view(t, db, testsupport.PageViewFixture{Referrer: "https://myblog.com/", At: now.Add(-time.Hour)})

		items, err := engine.GetTrafficSources(ctx(), timeframe.PeriodDay)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})
}

func TestGetDeviceStats(t *testing.T) {
	engine, db := setupEngine(t)

	at := now.Add(-time.Hour)
	view(t, db, testsupport.PageViewFixture{DeviceType: "desktop", At: at})
	view(t, db, testsupport.PageViewFixture{DeviceType: "desktop", At: at})
	view(t, db, testsupport.PageViewFixture{DeviceType: "mobile", At: at})
	view(t, db, testsupport.PageViewFixture{DeviceType: "tablet", At: at})

	items, err := engine.GetDeviceStats(ctx(), timeframe.PeriodDay)
	require.NoError(t, err)

	assert.Equal(t, []analytics.BreakdownItem{
		{Name: "desktop", Label: "Desktop", Count: 2, Percentage: 50},
		{Name: "mobile", Label: "Mobile", Count: 1, Percentage: 25},
		{Name: "tablet", Label: "Tablet", Count: 1, Percentage: 25},
	}, items)
}

func TestGetBrowserStats(t *testing.T) {
	engine, db := setupEngine(t)

	at := now.Add(-time.Hour)
	for _, browser := range []string{"Chrome", "Chrome", "Firefox", "Safari", "Edge", "Unknown"} {
		view(t, db, testsupport.PageViewFixture{Browser: browser, At: at})
	}

	items, err := engine.GetBrowserStats(ctx(), timeframe.PeriodDay)
	require.NoError(t, err)

	require.Len(t, items, 5)
	assert.Equal(t, "Chrome", items[0].Name)
	assert.Equal(t, 33, items[0].Percentage)
	assert.Equal(t, "Edge", items[1].Name)
	assert.Equal(t, 17, items[1].Percentage)
	assert.InDelta(t, 100, percentageSum(items), float64(len(items)))

	empty, err := analytics.NewEngine(db, analytics.WithClock(fixedClock{now.Add(365 * 24 * time.Hour)})).GetBrowserStats(ctx(), timeframe.PeriodDay)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetCountryStats(t *testing.T) {
	engine, db := setupEngine(t)

	at := now.Add(-time.Hour)
	for _, country := range []string{"US", "US", "US", "DE", "Unknown"} {
		view(t, db, testsupport.PageViewFixture{Country: country, At: at})
	}

	items, err := engine.GetCountryStats(ctx(), timeframe.PeriodDay)
	require.NoError(t, err)

	require.Len(t, items, 3)
	assert.Equal(t, analytics.BreakdownItem{Name: "US", Label: "United States", Count: 3, Percentage: 60}, items[0])
	assert.Equal(t, analytics.BreakdownItem{Name: "DE", Label: "Germany", Count: 1, Percentage: 20}, items[1])
	assert.Equal(t, "Unknown", items[2].Label)
}
