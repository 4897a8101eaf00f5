package analytics

import (
	"context"
	"fmt"

	"blogstats/internal/timeframe"
)

// GetViewsOverTime returns one point per bucket across the whole period,
// including empty buckets. The buckets tile the same window GetDashboardStats
// counts, so the views of all points add up to TotalViews. An empty
// bucketSize uses the period's default.
func (e *Engine) GetViewsOverTime(ctx context.Context, period timeframe.Period, bucketSize timeframe.BucketSize) ([]timeframe.Point, error) {
	if bucketSize == "" {
		bucketSize = period.DefaultBucketSize()
	}

	tf, err := timeframe.NewTimeFrame(period, bucketSize, e.now())
	if err != nil {
		return nil, err
	}

	bucket, args := tf.GetSQLiteBucketExpression("created_at")

	query := fmt.Sprintf(`
    SELECT
        %s AS bucket,
        COUNT(*) AS views,
        COUNT(DISTINCT visitor_id) AS visitors
    FROM page_views
    WHERE created_at >= ? AND created_at < ?
    GROUP BY bucket
    `, bucket)

	var grouped []timeframe.BucketStat
	if err := e.db.WithContext(ctx).Raw(query, append(args, tf.Start, tf.End())...).Scan(&grouped).Error; err != nil {
		return nil, fmt.Errorf("error fetching views over time: %w", err)
	}

	return tf.BuildTimeSeriesPoints(grouped), nil
}
