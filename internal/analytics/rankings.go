package analytics

import (
	"context"
	"fmt"

	"blogstats/internal/pkg/referrers"
	"blogstats/internal/timeframe"
)

// TopPost is a post ranked by views within a period.
type TopPost struct {
	PostID    uint   `json:"postId"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Published bool   `json:"published"`
	Views     int64  `json:"views"`
	Visitors  int64  `json:"visitors"`
}

// GetTopPosts ranks posts by views, then unique visitors, then post id.
func (e *Engine) GetTopPosts(ctx context.Context, limit int, period timeframe.Period) ([]TopPost, error) {
	w := e.window(period)

	query := `
    SELECT
        p.id AS post_id,
        p.title AS title,
        p.slug AS slug,
        p.published AS published,
        COUNT(*) AS views,
        COUNT(DISTINCT pv.visitor_id) AS visitors
    FROM page_views pv
    JOIN posts p ON p.id = pv.post_id
    WHERE pv.post_id IS NOT NULL
    AND pv.created_at >= ? AND pv.created_at < ?
    GROUP BY p.id
    ORDER BY views DESC, visitors DESC, p.id ASC
    LIMIT ?
    `

	results := []TopPost{}
	if err := e.db.WithContext(ctx).Raw(query, w.From, w.To, limit).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching top posts: %w", err)
	}
	return results, nil
}

// TopReferrer is a raw referrer string with its count and classification.
type TopReferrer struct {
	Referrer string           `json:"referrer"`
	Name     string           `json:"name"`
	Source   referrers.Source `json:"source"`
	Count    int64            `json:"count"`
}

// GetTopReferrers ranks non-empty raw referrers by count, then alphabetically.
func (e *Engine) GetTopReferrers(ctx context.Context, limit int, period timeframe.Period) ([]TopReferrer, error) {
	w := e.window(period)

	var rawResults []struct {
		Referrer string
		Count    int64
	}

	query := `
    SELECT referrer, COUNT(*) AS count
    FROM page_views
    WHERE referrer <> ''
    AND created_at >= ? AND created_at < ?
    GROUP BY referrer
    ORDER BY count DESC, referrer ASC
    LIMIT ?
    `

	if err := e.db.WithContext(ctx).Raw(query, w.From, w.To, limit).Scan(&rawResults).Error; err != nil {
		return nil, fmt.Errorf("error fetching top referrers: %w", err)
	}

	results := make([]TopReferrer, len(rawResults))
	for i, r := range rawResults {
		results[i] = TopReferrer{
			Referrer: r.Referrer,
			Name:     referrers.FriendlyName(referrers.Hostname(r.Referrer)),
			Source:   referrers.Classify(r.Referrer, e.siteHost),
			Count:    r.Count,
		}
	}
	return results, nil
}
