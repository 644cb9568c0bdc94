package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DBStatus  string    `json:"db_status"`
}

// HealthIndexAction reports liveness plus database reachability. The response
// stays 200 even when the database is down so load balancers can tell
// "degraded" apart from "gone".
func HealthIndexAction(ctx *cartridge.Context) error {
	status, dbStatus := "ok", "ok"

	if err := pingDatabase(ctx); err != nil {
		status, dbStatus = "degraded", "error"
		ctx.Logger.Error("Database health check failed", slog.Any("error", err))
	}

	return ctx.JSON(healthResponse{
		Status:    status,
		Timestamp: time.Now(),
		DBStatus:  dbStatus,
	})
}

func pingDatabase(ctx *cartridge.Context) error {
	db := ctx.DBManager.GetConnection()
	if db == nil {
		return errors.New("database connection unavailable")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
