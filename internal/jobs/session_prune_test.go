package jobs_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogstats/internal/config"
	"blogstats/internal/events"
	"blogstats/internal/jobs"
	"blogstats/internal/testsupport"
)

func TestSessionPruneJob(t *testing.T) {
	t.Run("deletes only sessions older than the retention period", func(t *testing.T) {
		dbManager, logger := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanTables(db, "page_views", "visitor_sessions")

		now := time.Now().UTC()
		testsupport.CreateSession(t, db, "stale", now.AddDate(-2, 0, 0), now.AddDate(0, 0, -40))
		testsupport.CreateSession(t, db, "fresh", now.AddDate(-2, 0, 0), now.AddDate(0, 0, -5))
		testsupport.InsertPageView(t, db, testsupport.PageViewFixture{VisitorID: "viewer", At: now.AddDate(0, 0, -1)})

		deleted, err := jobs.NewSessionPruneJob(dbManager, logger, 30).Run()
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		var remaining []string
		require.NoError(t, db.Model(&events.VisitorSession{}).Order("visitor_id").Pluck("visitor_id", &remaining).Error)
		assert.Equal(t, []string{"fresh", "viewer"}, remaining)

		var views int64
		require.NoError(t, db.Model(&events.PageView{}).Count(&views).Error)
		assert.Equal(t, int64(1), views, "page views are never pruned")
	})

	t.Run("works through more than one batch", func(t *testing.T) {
		dbManager, logger := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanTables(db, "page_views", "visitor_sessions")

		old := time.Now().UTC().AddDate(0, 0, -400)
		sessions := make([]events.VisitorSession, 0, 1005)
		for i := 0; i < 1005; i++ {
			sessions = append(sessions, events.VisitorSession{
				VisitorID:   fmt.Sprintf("old-%04d", i),
				IPHash:      "h",
				DeviceType:  events.DeviceDesktop,
				Browser:     "Chrome",
				OS:          "Windows",
				FirstSeenAt: old,
				LastSeenAt:  old,
			})
		}
		require.NoError(t, db.CreateInBatches(&sessions, 200).Error)

		deleted, err := jobs.NewSessionPruneJob(dbManager, logger, 365).Run()
		require.NoError(t, err)
		assert.Equal(t, int64(1005), deleted)
	})

	t.Run("non-positive retention disables pruning", func(t *testing.T) {
		dbManager, logger := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanTables(db, "page_views", "visitor_sessions")

		old := time.Now().UTC().AddDate(-3, 0, 0)
		testsupport.CreateSession(t, db, "ancient", old, old)

		deleted, err := jobs.NewSessionPruneJob(dbManager, logger, 0).Run()
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}

func TestScheduler(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanTables(db, "visitor_sessions")

	old := time.Now().UTC().AddDate(-3, 0, 0)
	testsupport.CreateSession(t, db, "ancient", old, old)

	cfg := *config.GetConfig()
	cfg.SessionRetentionDays = 365
	cfg.JobIntervalSeconds = 3600

	scheduler := jobs.NewScheduler(dbManager, logger, &cfg)
	deleted, err := scheduler.PruneSessions()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	require.NoError(t, scheduler.Start())
	assert.True(t, scheduler.IsRunning())
	scheduler.Stop()
	assert.False(t, scheduler.IsRunning())
}
