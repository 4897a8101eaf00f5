package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"blogstats/internal/pkg/async"
	"blogstats/internal/timeframe"
)

// DashboardStats summarizes a period and compares it with the one before.
type DashboardStats struct {
	TotalViews     int64   `json:"totalViews"`
	UniqueVisitors int64   `json:"uniqueVisitors"`
	ViewsChange    float64 `json:"viewsChange"`
	VisitorsChange float64 `json:"visitorsChange"`
	// AvgTimeOnPage is in seconds.
	AvgTimeOnPage int64 `json:"avgTimeOnPage"`
}

type windowTotals struct {
	Views    int64
	Visitors int64
}

func (e *Engine) totals(ctx context.Context, from, to time.Time) (windowTotals, error) {
	var totals windowTotals
	query := `
    SELECT
        COUNT(*) AS views,
        COUNT(DISTINCT visitor_id) AS visitors
    FROM page_views
    WHERE created_at >= ? AND created_at < ?
    `
	if err := e.db.WithContext(ctx).Raw(query, from.UTC(), to.UTC()).Scan(&totals).Error; err != nil {
		return windowTotals{}, fmt.Errorf("error counting page views: %w", err)
	}
	return totals, nil
}

// avgSessionSeconds averages last_seen_at - first_seen_at, clamped to
// [0, maxVisit], over sessions of visitors with a page view at or after from
// (and before to, when to is not zero).
func (e *Engine) avgSessionSeconds(ctx context.Context, from, to time.Time) (int64, error) {
	var row struct {
		AvgSeconds float64
	}

	upper := ""
	args := []any{e.maxVisit.Seconds(), from.UTC()}
	if !to.IsZero() {
		upper = "AND created_at < ?"
		args = append(args, to.UTC())
	}

	query := fmt.Sprintf(`
    SELECT COALESCE(AVG(
        MIN(MAX((julianday(last_seen_at) - julianday(first_seen_at)) * 86400.0, 0), ?)
    ), 0) AS avg_seconds
    FROM visitor_sessions
    WHERE visitor_id IN (
        SELECT DISTINCT visitor_id FROM page_views
        WHERE created_at >= ? %s
    )
    `, upper)

	if err := e.db.WithContext(ctx).Raw(query, args...).Scan(&row).Error; err != nil {
		return 0, fmt.Errorf("error averaging session duration: %w", err)
	}
	return int64(math.Round(row.AvgSeconds)), nil
}

// GetDashboardStats computes totals for the period's window and the change
// against the window of equal length right before it.
func (e *Engine) GetDashboardStats(ctx context.Context, period timeframe.Period) (*DashboardStats, error) {
	current := e.window(period)
	previous := current.Previous()

	tasks := []async.Task{
		{Name: "current", Execute: func(ctx context.Context) (any, error) {
			return e.totals(ctx, current.From, current.To)
		}},
		{Name: "previous", Execute: func(ctx context.Context) (any, error) {
			return e.totals(ctx, previous.From, previous.To)
		}},
		{Name: "avgTime", Execute: func(ctx context.Context) (any, error) {
			return e.avgSessionSeconds(ctx, current.From, current.To)
		}},
	}

	results := e.pool.Execute(ctx, tasks)
	if err := async.FirstError(tasks, results); err != nil {
		return nil, err
	}

	cur := results["current"].Data.(windowTotals)
	prev := results["previous"].Data.(windowTotals)

	return &DashboardStats{
		TotalViews:     cur.Views,
		UniqueVisitors: cur.Visitors,
		ViewsChange:    PercentChange(cur.Views, prev.Views),
		VisitorsChange: PercentChange(cur.Visitors, prev.Visitors),
		AvgTimeOnPage:  results["avgTime"].Data.(int64),
	}, nil
}
