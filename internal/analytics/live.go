package analytics

import (
	"context"
	"fmt"
	"time"

	"blogstats/internal/pkg/referrers"
)

// ActivityItem is one recent page view as shown in the activity feed.
type ActivityItem struct {
	ID           uint             `json:"id"`
	PagePath     string           `json:"pagePath"`
	PostID       *uint            `json:"postId"`
	PostTitle    *string          `json:"postTitle"`
	VisitorAlias string           `json:"visitorAlias"`
	Referrer     string           `json:"referrer"`
	Source       referrers.Source `json:"source"`
	DeviceType   string           `json:"deviceType"`
	Browser      string           `json:"browser"`
	OS           string           `json:"os"`
	Country      string           `json:"country"`
	CountryName  string           `json:"countryName"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// GetRecentActivity returns the newest page views, newest first.
func (e *Engine) GetRecentActivity(ctx context.Context, limit int) ([]ActivityItem, error) {
	var rows []struct {
		ID         uint
		PagePath   string
		PostID     *uint
		PostTitle  *string
		VisitorID  string
		Referrer   string
		DeviceType string
		Browser    string
		OS         string
		Country    string
		CreatedAt  time.Time
	}

	query := `
    SELECT
        pv.id, pv.page_path, pv.post_id, p.title AS post_title, pv.visitor_id,
        pv.referrer, pv.device_type, pv.browser, pv.os, pv.country, pv.created_at
    FROM page_views pv
    LEFT JOIN posts p ON p.id = pv.post_id
    ORDER BY pv.created_at DESC, pv.id DESC
    LIMIT ?
    `

	if err := e.db.WithContext(ctx).Raw(query, limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching recent activity: %w", err)
	}

	items := make([]ActivityItem, len(rows))
	for i, r := range rows {
		items[i] = ActivityItem{
			ID:           r.ID,
			PagePath:     r.PagePath,
			PostID:       r.PostID,
			PostTitle:    r.PostTitle,
			VisitorAlias: e.aliases.Alias(r.VisitorID),
			Referrer:     r.Referrer,
			Source:       referrers.Classify(r.Referrer, e.siteHost),
			DeviceType:   r.DeviceType,
			Browser:      r.Browser,
			OS:           r.OS,
			Country:      r.Country,
			CountryName:  CountryName(r.Country),
			CreatedAt:    r.CreatedAt.UTC(),
		}
	}
	return items, nil
}

// GetActiveVisitors counts distinct visitors with a page view in the live window.
func (e *Engine) GetActiveVisitors(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(DISTINCT visitor_id) FROM page_views WHERE created_at >= ?`
	if err := e.db.WithContext(ctx).Raw(query, e.liveSince()).Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("error counting active visitors: %w", err)
	}
	return count, nil
}

// ActivePage is a path viewed during the live window.
type ActivePage struct {
	Path    string `json:"path"`
	Viewers int64  `json:"viewers"`
	Views   int64  `json:"views"`
}

type LiveStats struct {
	ActiveVisitors    int64        `json:"activeVisitors"`
	PageViewsLast5Min int64        `json:"pageViewsLast5Min"`
	AvgTimeOnPage     int64        `json:"avgTimeOnPage"`
	ActivePages       []ActivePage `json:"activePages"`
}

// GetLiveStats reports activity in the trailing live window. Active pages are
// ordered by distinct viewers, then path.
func (e *Engine) GetLiveStats(ctx context.Context) (*LiveStats, error) {
	since := e.liveSince()
	db := e.db.WithContext(ctx)

	var totals windowTotals
	query := `
    SELECT COUNT(*) AS views, COUNT(DISTINCT visitor_id) AS visitors
    FROM page_views
    WHERE created_at >= ?
    `
	if err := db.Raw(query, since).Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("error counting live page views: %w", err)
	}

	avg, err := e.avgSessionSeconds(ctx, since, time.Time{})
	if err != nil {
		return nil, err
	}

	pages := []ActivePage{}
	query = `
    SELECT page_path AS path, COUNT(DISTINCT visitor_id) AS viewers, COUNT(*) AS views
    FROM page_views
    WHERE created_at >= ?
    GROUP BY page_path
    ORDER BY viewers DESC, path ASC
    LIMIT ?
    `
	if err := db.Raw(query, since, maxActivePages).Scan(&pages).Error; err != nil {
		return nil, fmt.Errorf("error fetching active pages: %w", err)
	}

	return &LiveStats{
		ActiveVisitors:    totals.Visitors,
		PageViewsLast5Min: totals.Views,
		AvgTimeOnPage:     avg,
		ActivePages:       pages,
	}, nil
}
