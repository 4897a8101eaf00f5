// Package analytics answers the admin dashboard's aggregation queries.
// Every metric is computed on demand from raw page views and visitor sessions.
//
// The package is organized into focused modules:
//   - engine.go: Engine construction and shared window helpers
//   - dashboard.go: period totals and period-over-period comparison
//   - series.go: gap-filled views over time
//   - rankings.go: top posts and top referrers
//   - breakdowns.go: traffic source, device, browser and country shares
//   - live.go: recent activity and the 5-minute live window
package analytics

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"blogstats/internal/pkg/async"
	"blogstats/internal/timeframe"
	"blogstats/internal/visitors"
)

// LiveWindow is the trailing window used for "currently active" metrics.
const LiveWindow = 5 * time.Minute

// DefaultMaxVisitDuration caps a single session's contribution to average time on page.
const DefaultMaxVisitDuration = 30 * time.Minute

const maxActivePages = 100

// Engine runs read-only aggregation queries against the event store.
type Engine struct {
	db       *gorm.DB
	logger   *slog.Logger
	siteHost string
	maxVisit time.Duration
	clock    timeframe.TimeProvider
	pool     *async.Pool
	aliases  *visitors.Aliaser
}

type Option func(*Engine)

// WithSiteHost sets the blog's own host, used to recognize internal referrers.
func WithSiteHost(host string) Option {
	return func(e *Engine) { e.siteHost = host }
}

func WithMaxVisitDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.maxVisit = d
		}
	}
}

// WithAliaser sets how visitor ids are shown in the activity feed.
func WithAliaser(aliaser *visitors.Aliaser) Option {
	return func(e *Engine) {
		if aliaser != nil {
			e.aliases = aliaser
		}
	}
}

func WithClock(clock timeframe.TimeProvider) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEngine(db *gorm.DB, opts ...Option) *Engine {
	e := &Engine{
		db:       db,
		logger:   slog.Default(),
		maxVisit: DefaultMaxVisitDuration,
		clock:    &timeframe.DefaultTimeProvider{},
		pool:     async.NewPool(4),
		aliases:  visitors.DefaultAliaser,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}

func (e *Engine) window(period timeframe.Period) timeframe.Window {
	return period.Current(e.now())
}

func (e *Engine) liveSince() time.Time {
	return e.now().Add(-LiveWindow)
}
