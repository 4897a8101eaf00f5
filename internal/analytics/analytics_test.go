package analytics_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"blogstats/internal/analytics"
	"blogstats/internal/testsupport"
)

// Friday, March 15 2024, 12:34:56 UTC
var now = time.Date(2024, 3, 15, 12, 34, 56, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func setupEngine(t *testing.T) (*analytics.Engine, *gorm.DB) {
	t.Helper()

	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanTables(db, "page_views", "visitor_sessions", "posts")

	engine := analytics.NewEngine(db,
		analytics.WithClock(fixedClock{now}),
		analytics.WithSiteHost("myblog.com"),
		analytics.WithLogger(logger),
	)
	return engine, db
}

func view(t *testing.T, db *gorm.DB, fixture testsupport.PageViewFixture) {
	t.Helper()
	testsupport.InsertPageView(t, db, fixture)
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 0.0, analytics.PercentChange(0, 0))
	assert.Equal(t, 100.0, analytics.PercentChange(3, 0))
	assert.Equal(t, 100.0, analytics.PercentChange(10, 5))
	assert.Equal(t, -50.0, analytics.PercentChange(5, 10))
	assert.Equal(t, 0.0, analytics.PercentChange(7, 7))
	assert.Equal(t, -100.0, analytics.PercentChange(0, 4))
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "United States", analytics.CountryName("US"))
	assert.Equal(t, "Germany", analytics.CountryName("DE"))
	assert.Equal(t, "Unknown", analytics.CountryName("Unknown"))
	assert.Equal(t, "Unknown", analytics.CountryName(""))
	assert.Equal(t, "ZZ", analytics.CountryName("zz"))
}

func TestNewEngineDefaults(t *testing.T) {
	engine := analytics.NewEngine(nil, analytics.WithMaxVisitDuration(0), analytics.WithClock(nil), analytics.WithLogger(nil))
	assert.NotNil(t, engine)
}

func ctx() context.Context {
	return context.Background()
}

func visitorID(prefix string, i int) string {
	return fmt.Sprintf("%s-%d", prefix, i)
}
