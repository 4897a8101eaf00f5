package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"blogstats/internal/pkg/referrers"
	"blogstats/internal/timeframe"
)

// BreakdownItem is one category of a categorical breakdown.
type BreakdownItem struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Count      int64  `json:"count"`
	Percentage int    `json:"percentage"`
}

type categoryCount struct {
	Name  string
	Count int64
}

// buildBreakdown orders categories by count and attaches rounded percentages.
// It returns an empty list when there is nothing to divide.
func buildBreakdown(counts []categoryCount, label func(string) string) []BreakdownItem {
	var total int64
	for _, c := range counts {
		total += c.Count
	}
	if total == 0 {
		return []BreakdownItem{}
	}

	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Name < counts[j].Name
	})

	items := make([]BreakdownItem, 0, len(counts))
	for _, c := range counts {
		if c.Count == 0 {
			continue
		}
		items = append(items, BreakdownItem{
			Name:       c.Name,
			Label:      label(c.Name),
			Count:      c.Count,
			Percentage: int(math.Round(float64(c.Count) / float64(total) * 100)),
		})
	}
	return items
}

func identity(name string) string { return name }

// countBy groups page views in the window by a column of page_views.
func (e *Engine) countBy(ctx context.Context, column string, w timeframe.Window) ([]categoryCount, error) {
	query := fmt.Sprintf(`
    SELECT %[1]s AS name, COUNT(*) AS count
    FROM page_views
    WHERE created_at >= ? AND created_at < ?
    GROUP BY %[1]s
    `, column)

	var counts []categoryCount
	if err := e.db.WithContext(ctx).Raw(query, w.From, w.To).Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("error grouping page views by %s: %w", column, err)
	}
	return counts, nil
}

// GetTrafficSources classifies each page view's referrer. Internal traffic is
// left out of both the list and the total.
func (e *Engine) GetTrafficSources(ctx context.Context, period timeframe.Period) ([]BreakdownItem, error) {
	byReferrer, err := e.countBy(ctx, "referrer", e.window(period))
	if err != nil {
		return nil, err
	}

	bySource := make(map[referrers.Source]int64)
	for _, row := range byReferrer {
		source := referrers.Classify(row.Name, e.siteHost)
		if source == referrers.SourceInternal {
			continue
		}
		bySource[source] += row.Count
	}

	counts := make([]categoryCount, 0, len(bySource))
	for source, count := range bySource {
		counts = append(counts, categoryCount{Name: string(source), Count: count})
	}
	return buildBreakdown(counts, identity), nil
}

func (e *Engine) GetDeviceStats(ctx context.Context, period timeframe.Period) ([]BreakdownItem, error) {
	counts, err := e.countBy(ctx, "device_type", e.window(period))
	if err != nil {
		return nil, err
	}
	return buildBreakdown(counts, deviceLabel), nil
}

func (e *Engine) GetBrowserStats(ctx context.Context, period timeframe.Period) ([]BreakdownItem, error) {
	counts, err := e.countBy(ctx, "browser", e.window(period))
	if err != nil {
		return nil, err
	}
	return buildBreakdown(counts, identity), nil
}

// GetCountryStats labels each country code with its display name.
func (e *Engine) GetCountryStats(ctx context.Context, period timeframe.Period) ([]BreakdownItem, error) {
	counts, err := e.countBy(ctx, "country", e.window(period))
	if err != nil {
		return nil, err
	}
	return buildBreakdown(counts, CountryName), nil
}
