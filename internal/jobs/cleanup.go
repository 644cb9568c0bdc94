package jobs

import (
	"log/slog"
	"time"

	"beaconly/internal/analytics"
	"beaconly/internal/config"
	"beaconly/internal/database"
)

// CleanupJob removes rollup buckets older than the retention period.
// Raw events are kept; only the derived aggregates age out.
type CleanupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewCleanupJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

func (j *CleanupJob) Run() error {
	retentionDays := j.cfg.RollupRetentionDays
	cutoffDate := time.Now().UTC().AddDate(0, 0, -retentionDays)

	j.logger.Info("Starting cleanup of old rollup buckets",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff_date", cutoffDate))

	for _, model := range []interface{}{
		&analytics.SiteStat{},
		&analytics.PageStat{},
		&analytics.RefStat{},
		&analytics.DeviceStat{},
	} {
		if err := j.deleteOldBuckets(model, cutoffDate); err != nil {
			return err
		}
	}

	return nil
}

// deleteOldBuckets removes matching rows in batches to avoid holding the
// write lock for too long.
func (j *CleanupJob) deleteOldBuckets(model interface{}, cutoffDate time.Time) error {
	db := j.dbManager.GetConnection()
	batchSize := 1000
	totalDeleted := int64(0)

	for {
		result := db.Where("hour < ?", cutoffDate).
			Limit(batchSize).
			Delete(model)

		if result.Error != nil {
			j.logger.Error("Failed to delete old rollup buckets",
				slog.Any("error", result.Error),
				slog.Int64("deleted_so_far", totalDeleted))
			return result.Error
		}

		totalDeleted += result.RowsAffected

		if result.RowsAffected < int64(batchSize) {
			break
		}

		// Small delay between batches to prevent lock contention
		time.Sleep(100 * time.Millisecond)
	}

	if totalDeleted > 0 {
		j.logger.Info("Cleaned up old rollup buckets",
			slog.Int64("deleted_count", totalDeleted))
	}

	return nil
}
