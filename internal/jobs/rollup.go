package jobs

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"beaconly/internal/database"
	"beaconly/internal/events"
)

// rollupHealWindow covers recent buckets that may have drifted from the raw
// events, for example after a crash mid-transaction or a manual data import.
const rollupHealWindow = 2 * time.Hour

// RollupJob periodically rebuilds the recent rollup buckets from raw events.
type RollupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
}

func NewRollupJob(dbManager *database.DBManager, logger *slog.Logger) *RollupJob {
	return &RollupJob{
		dbManager: dbManager,
		logger:    logger,
	}
}

func (j *RollupJob) Run() error {
	to := time.Now().UTC()
	from := to.Add(-rollupHealWindow)

	j.logger.Debug("Rebuilding recent rollup buckets",
		slog.Time("from", from),
		slog.Time("to", to))

	db := j.dbManager.GetConnection()
	return sqlite.PerformWrite(j.logger, db, func(tx *gorm.DB) error {
		return events.RebuildRollupsForRange(tx, j.logger, from, to)
	})
}
