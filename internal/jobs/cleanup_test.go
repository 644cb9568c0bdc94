package jobs_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beaconly/internal/analytics"
	"beaconly/internal/config"
	"beaconly/internal/database"
	"beaconly/internal/events"
	"beaconly/internal/jobs"
	"beaconly/internal/testsupport"
	"beaconly/internal/websites"
)

func setupJobsDB(t *testing.T) (*database.DBManager, *config.Config) {
	t.Helper()

	cfg := *config.GetConfig()
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set BEACONLY_ENV=test", cfg.Environment)
	}
	cfg.DatabaseName = filepath.Join(t.TempDir(), "jobs_test.db")

	dbManager := database.NewDBManager(&cfg, testsupport.GetLogger())
	require.NoError(t, dbManager.Init())
	require.NoError(t, dbManager.MigrateDatabase())

	return dbManager, &cfg
}

func TestCleanupJobRemovesExpiredBuckets(t *testing.T) {
	dbManager, cfg := setupJobsDB(t)
	cfg.RollupRetentionDays = 30
	db := dbManager.GetConnection()

	expired := time.Now().UTC().AddDate(0, 0, -40).Truncate(time.Hour)
	recent := time.Now().UTC().Add(-time.Hour).Truncate(time.Hour)

	require.NoError(t, db.Create(&analytics.SiteStat{WebsiteID: 1, Hour: expired, PageViews: 5}).Error)
	require.NoError(t, db.Create(&analytics.SiteStat{WebsiteID: 1, Hour: recent, PageViews: 3}).Error)
	require.NoError(t, db.Create(&analytics.PageStat{WebsiteID: 1, PageURL: "https://example.com/", Hour: expired, Views: 5}).Error)
	require.NoError(t, db.Create(&analytics.RefStat{WebsiteID: 1, Referrer: "Direct", Hour: expired, PageViews: 5}).Error)
	require.NoError(t, db.Create(&analytics.DeviceStat{WebsiteID: 1, DeviceType: "desktop", Hour: expired, PageViews: 5}).Error)

	job := jobs.NewCleanupJob(dbManager, testsupport.GetLogger(), cfg)
	require.NoError(t, job.Run())

	var siteStats []analytics.SiteStat
	require.NoError(t, db.Find(&siteStats).Error)
	require.Len(t, siteStats, 1)
	assert.Equal(t, recent, siteStats[0].Hour.UTC())

	for _, model := range []interface{}{&analytics.PageStat{}, &analytics.RefStat{}, &analytics.DeviceStat{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	}
}

func TestCleanupJobKeepsRawEvents(t *testing.T) {
	dbManager, cfg := setupJobsDB(t)
	cfg.RollupRetentionDays = 30
	db := dbManager.GetConnection()

	old := time.Now().UTC().AddDate(0, 0, -100)
	event := events.Event{
		WebsiteID: 1, SessionToken: "s1",
		EventType: events.EventTypePageView,
		PageURL:   "https://example.com/",
		Timestamp: old, CreatedAt: old,
	}
	require.NoError(t, db.Create(&event).Error)

	job := jobs.NewCleanupJob(dbManager, testsupport.GetLogger(), cfg)
	require.NoError(t, job.Run())

	var count int64
	require.NoError(t, db.Model(&events.Event{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRollupJobHealsRecentBuckets(t *testing.T) {
	dbManager, _ := setupJobsDB(t)
	db := dbManager.GetConnection()

	website := websites.Website{Domain: "example.com", TrackingCode: websites.NewTrackingCode(), Active: true}
	require.NoError(t, db.Create(&website).Error)

	visitorID := uint(1)
	recent := time.Now().UTC().Add(-30 * time.Minute)
	event := events.Event{
		WebsiteID: website.ID, VisitorID: &visitorID, SessionToken: "s1",
		EventType: events.EventTypePageView,
		PageURL:   "https://example.com/", DeviceType: "desktop",
		Timestamp: recent, CreatedAt: recent,
	}
	require.NoError(t, db.Create(&event).Error)

	job := jobs.NewRollupJob(dbManager, testsupport.GetLogger())
	require.NoError(t, job.Run())

	var stat analytics.SiteStat
	require.NoError(t, db.Where("website_id = ?", website.ID).First(&stat).Error)
	assert.Equal(t, int64(1), stat.PageViews)
	assert.Equal(t, int64(1), stat.Visitors)
	assert.Equal(t, int64(1), stat.Sessions)

	// Running again must not double-count.
	require.NoError(t, job.Run())
	var stats []analytics.SiteStat
	require.NoError(t, db.Find(&stats).Error)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].PageViews)
}
