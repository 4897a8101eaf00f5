package jobs

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

const sessionPruneBatchSize = 1000

const pruneSessionsSQL = `
DELETE FROM visitor_sessions
WHERE id IN (
    SELECT id FROM visitor_sessions
    WHERE last_seen_at < ?
    LIMIT ?
)
`

// SessionPruneJob deletes visitor sessions that have not been seen within the
// retention period. Page views are never touched.
type SessionPruneJob struct {
	dbManager     cartridge.DBManager
	logger        *slog.Logger
	retentionDays int
	now           func() time.Time
}

func NewSessionPruneJob(dbManager cartridge.DBManager, logger *slog.Logger, retentionDays int) *SessionPruneJob {
	return &SessionPruneJob{
		dbManager:     dbManager,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Run deletes expired sessions in batches and returns how many were removed.
func (j *SessionPruneJob) Run() (int64, error) {
	if j.retentionDays <= 0 {
		j.logger.Debug("Session pruning disabled", slog.Int("retention_days", j.retentionDays))
		return 0, nil
	}

	db := j.dbManager.GetConnection()
	cutoff := j.now().UTC().AddDate(0, 0, -j.retentionDays)

	var totalDeleted int64
	for {
		var deleted int64
		err := sqlite.PerformWrite(j.logger, db, func(tx *gorm.DB) error {
			result := tx.Exec(pruneSessionsSQL, cutoff, sessionPruneBatchSize)
			deleted = result.RowsAffected
			return result.Error
		})
		if err != nil {
			j.logger.Error("Failed to prune visitor sessions",
				slog.Any("error", err),
				slog.Int64("deleted_so_far", totalDeleted))
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted < sessionPruneBatchSize {
			break
		}

		// Let ingestion writes in between batches.
		time.Sleep(100 * time.Millisecond)
	}

	if totalDeleted > 0 {
		j.logger.Info("Pruned visitor sessions",
			slog.Int64("deleted_count", totalDeleted),
			slog.Time("cutoff", cutoff))
	}

	return totalDeleted, nil
}
