package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/cache"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"beaconly/internal"
	"beaconly/internal/analytics"
	"beaconly/internal/config"
	"beaconly/internal/events"
	"beaconly/internal/visitors"
	"beaconly/internal/websites"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with beaconly's interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// allModels returns all beaconly models for migration
func allModels() []any {
	return []any{
		&cache.CacheRecord{},
		&websites.Website{},
		&visitors.Visitor{},
		&visitors.Session{},
		&events.Event{},
		&analytics.SiteStat{},
		&analytics.PageStat{},
		&analytics.RefStat{},
		&analytics.DeviceStat{},
	}
}

// SetupTestDB creates a test database with all beaconly models migrated.
// Uses a named in-memory database with cache=shared to allow multiple
// connections to share the same database within a test. Caches the database
// by test name so multiple calls within the same test return the same one.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	cfg := config.GetConfig()

	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set BEACONLY_ENV=test", cfg.Environment)
	}

	db := SetupTestDB(t)
	logger := GetLogger()
	dbManager := NewTestDBManager(db)

	return dbManager, logger
}

// SetupTestDBManagerWithWebsite creates a test database manager with a test website
func SetupTestDBManagerWithWebsite(t *testing.T, domain string) (*TestDBManager, *slog.Logger, websites.Website) {
	dbManager, logger := SetupTestDBManager(t)
	website := CreateTestWebsite(dbManager.GetConnection(), domain)
	return dbManager, logger, website
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	var tables []string
	for _, name := range tableNames {
		if name != "migrations" && name != "schema_migrations" {
			tables = append(tables, name)
		}
	}

	if len(tables) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CleanAllAggregates clears the rollup tables only
func CleanAllAggregates(db *gorm.DB) {
	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"site_stats", "page_stats", "ref_stats", "device_stats"} {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CreateTestWebsite creates a test website in the database
func CreateTestWebsite(db *gorm.DB, domain string) websites.Website {
	var website websites.Website
	if db.Where("domain = ?", domain).First(&website).Error != nil {
		website = websites.Website{
			Domain:       domain,
			TrackingCode: websites.NewTrackingCode(),
			Active:       true,
			CreatedAt:    time.Now().UTC(),
		}
		db.Create(&website)
	}
	return website
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// NewTestEventInput builds a valid pageview input for the given website.
// Callers override fields as needed before recording.
func NewTestEventInput(website websites.Website, visitorID, sessionID string, timestamp time.Time) *events.RecordEventInput {
	return &events.RecordEventInput{
		TrackingCode: website.TrackingCode,
		EventType:    events.EventTypePageView,
		URL:          "https://" + website.Domain + "/",
		SessionID:    sessionID,
		VisitorID:    visitorID,
		Timestamp:    &timestamp,
		IPAddress:    "203.0.113.10",
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// RecordTestEvent records one event and fails the test on error
func RecordTestEvent(t *testing.T, db *gorm.DB, logger *slog.Logger, input *events.RecordEventInput) *events.Event {
	t.Helper()
	event, err := events.Record(db, logger, input)
	require.NoError(t, err)
	return event
}

// CreateEvent inserts an event row directly, bypassing the recording pipeline.
// Useful for analytics tests that need precise timestamps and visitor wiring.
func CreateEvent(t *testing.T, db *gorm.DB, websiteID uint, visitorID *uint, sessionToken, pageURL, referrer string, timestamp time.Time) events.Event {
	t.Helper()
	event := events.Event{
		WebsiteID:    websiteID,
		VisitorID:    visitorID,
		SessionToken: sessionToken,
		EventType:    events.EventTypePageView,
		PageURL:      pageURL,
		Referrer:     referrer,
		DeviceType:   "desktop",
		Browser:      "Chrome",
		OS:           "Windows",
		Timestamp:    timestamp,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, db.Create(&event).Error)
	return event
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
