package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"blogstats/internal/analytics"
	"blogstats/internal/config"
	"blogstats/internal/settings"
	"blogstats/internal/timeframe"
)

const (
	defaultQueryLimit = 10
	maxQueryLimit     = 100

	errAnalyticsFailed = "Failed to load analytics"
)

// AnalyticsQuery is the validated form of the GET /api/analytics parameters.
type AnalyticsQuery struct {
	Type    string
	Period  timeframe.Period
	Limit   int
	GroupBy timeframe.BucketSize
}

type analyticsQueryFunc func(ctx context.Context, engine *analytics.Engine, q AnalyticsQuery) (any, error)

// analyticsQueries maps the type parameter to the engine call that answers it.
var analyticsQueries = map[string]analyticsQueryFunc{
	"dashboard": func(ctx context.Context, e *analytics.Engine, q AnalyticsQuery) (any, error) {
		return e.GetDashboardStats(ctx, q.Period)
	},
	"views-over-time": func(ctx context.Context, e *analytics.Engine, q AnalyticsQuery) (any, error) {
		return e.GetViewsOverTime(ctx, q.Period, q.GroupBy)
	},
	"top-posts": func(ctx context.Context, e *analytics.Engine, q AnalyticsQuery) (any, error) {
		return e.GetTopPosts(ctx, q.Limit, q.Period)
	},
	"top-referrers": func(ctx context.Context, e *analytics.Engine, q AnalyticsQuery) (any, error) {
		return e.GetTopReferrers(ctx, q.Limit, q.Period)
	},
	"traffic-sources": func(ctx context.Context, e *analytics.Engine, q AnalyticsQuery) (any, error) {
		return e.GetTrafficSources(ctx, q.Period)
	},
	"device-stats": func(ctx context.Context, e *analytics.Engine, q AnalyticsQuery) (any, error) {
		return e.GetDeviceStats(ctx, q.Period)
	},
	"browser-stats": func(ctx context.Context, e *analytics.Engine, q AnalyticsQuery) (any, error) {
		return e.GetBrowserStats(ctx, q.Period)
	},
	"country-stats": func(ctx context.Context, e *analytics.Engine, q AnalyticsQuery) (any, error) {
		return e.GetCountryStats(ctx, q.Period)
	},
	"recent-activity": func(ctx context.Context, e *analytics.Engine, q AnalyticsQuery) (any, error) {
		return e.GetRecentActivity(ctx, q.Limit)
	},
	"active-visitors": func(ctx context.Context, e *analytics.Engine, _ AnalyticsQuery) (any, error) {
		count, err := e.GetActiveVisitors(ctx)
		if err != nil {
			return nil, err
		}
		return fiber.Map{"activeVisitors": count}, nil
	},
	"live-stats": func(ctx context.Context, e *analytics.Engine, _ AnalyticsQuery) (any, error) {
		return e.GetLiveStats(ctx)
	},
}

// ParseAnalyticsQuery validates the query-string parameters and fills defaults.
// Validation failures are returned as *fiber.Error with status 400.
func ParseAnalyticsQuery(queryType, period, limit, groupBy string) (AnalyticsQuery, error) {
	q := AnalyticsQuery{Type: queryType, Period: timeframe.PeriodWeek, Limit: defaultQueryLimit}

	if queryType == "" {
		return q, fiber.NewError(fiber.StatusBadRequest, "Missing analytics type")
	}
	if _, ok := analyticsQueries[queryType]; !ok {
		return q, fiber.NewError(fiber.StatusBadRequest, "Invalid analytics type: "+queryType)
	}

	if period != "" {
		parsed, err := timeframe.ParsePeriod(period)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "Invalid period: "+period)
		}
		q.Period = parsed
	}

	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > maxQueryLimit {
			return q, fiber.NewError(fiber.StatusBadRequest, "Limit must be between 1 and 100")
		}
		q.Limit = n
	}

	if groupBy != "" {
		bucket, err := timeframe.ParseBucketSize(groupBy)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "Invalid groupBy: "+groupBy)
		}
		if _, err := timeframe.NewTimeFrame(q.Period, bucket, time.Now()); err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "groupBy "+groupBy+" is too fine for period "+string(q.Period))
		}
		q.GroupBy = bucket
	}

	return q, nil
}

// AnalyticsHandler serves GET /api/analytics.
type AnalyticsHandler struct {
	settings *settings.Cache
}

func NewAnalyticsHandler(settingsCache *settings.Cache) *AnalyticsHandler {
	return &AnalyticsHandler{settings: settingsCache}
}

// Index dispatches the type parameter to the aggregation engine.
func (h *AnalyticsHandler) Index(ctx *cartridge.Context) error {
	setNoCacheHeaders(ctx.Ctx)

	q, err := ParseAnalyticsQuery(
		ctx.Query("type"),
		ctx.Query("period"),
		ctx.Query("limit"),
		ctx.Query("groupBy"),
	)
	if err != nil {
		return handleQueryError(ctx, err)
	}

	cfg := config.GetConfig()
	engine := analytics.NewEngine(ctx.DB(),
		analytics.WithSiteHost(h.siteHost(ctx, cfg)),
		analytics.WithMaxVisitDuration(cfg.MaxVisitDuration()),
		analytics.WithLogger(ctx.Logger),
	)

	data, err := analyticsQueries[q.Type](ctx.UserContext(), engine, q)
	if err != nil {
		return handleQueryError(ctx, err)
	}

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// siteHost is the site_domain setting, then the configured domain, then the
// host the admin request was sent to.
func (h *AnalyticsHandler) siteHost(ctx *cartridge.Context, cfg *config.Config) string {
	if host := h.settings.SiteDomain(cfg.SiteDomain); host != "" {
		return host
	}
	host := ctx.Hostname()
	if name, _, err := net.SplitHostPort(host); err == nil {
		return name
	}
	return host
}

func handleQueryError(ctx *cartridge.Context, err error) error {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return ctx.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	case errors.Is(err, timeframe.ErrInvalidPeriod),
		errors.Is(err, timeframe.ErrInvalidBucketSize),
		errors.Is(err, timeframe.ErrTooManyBuckets):
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		ctx.Logger.Error("Analytics query failed", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": errAnalyticsFailed})
	}
}

func setNoCacheHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
}
