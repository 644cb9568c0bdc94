package events

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"beaconly/internal/visitors"
)

// truncateToHalfHour truncates a timestamp to the nearest half-hour boundary (00 or 30 minutes),
// preserving the original timezone offset.
func truncateToHalfHour(timestamp time.Time) time.Time {
	_, offsetSeconds := timestamp.Zone()
	year, month, day, hour, minute := timestamp.Year(), timestamp.Month(), timestamp.Day(), timestamp.Hour(), timestamp.Minute()
	location := time.FixedZone("", offsetSeconds)
	if minute < 30 {
		return time.Date(year, month, day, hour, 0, 0, 0, location)
	}
	return time.Date(year, month, day, hour, 30, 0, 0, location)
}

// updateRollups advances the four rollup tables for one recorded page view.
// The rollups are a read-through cache over the event log; they can always be
// rebuilt from it, so incremental drift here is healed, not fatal.
func updateRollups(tx *gorm.DB, event *Event, session *visitors.Session, isNewVisitor, isNewSession bool) error {
	hour := truncateToHalfHour(event.Timestamp)

	if err := updateSiteStat(tx, event.WebsiteID, hour, isNewVisitor, isNewSession); err != nil {
		return fmt.Errorf("failed to update site stats: %w", err)
	}
	if err := updateBounceCount(tx, event.WebsiteID, session, isNewSession); err != nil {
		return fmt.Errorf("failed to update bounce count: %w", err)
	}
	if err := updatePageStat(tx, event.WebsiteID, event.PageURL, hour, isNewVisitor); err != nil {
		return fmt.Errorf("failed to update page stats: %w", err)
	}
	if err := updateRefStat(tx, event.WebsiteID, event.Referrer, hour, isNewVisitor, isNewSession); err != nil {
		return fmt.Errorf("failed to update ref stats: %w", err)
	}
	if err := updateDeviceStat(tx, event.WebsiteID, event.DeviceType, hour, isNewVisitor); err != nil {
		return fmt.Errorf("failed to update device stats: %w", err)
	}
	return nil
}

func boolIncrement(b bool) int {
	if b {
		return 1
	}
	return 0
}

func updateSiteStat(tx *gorm.DB, websiteID uint, hour time.Time, isNewVisitor, isNewSession bool) error {
	visitorInc := boolIncrement(isNewVisitor)
	sessionInc := boolIncrement(isNewSession)
	now := time.Now().UTC()
	query := `
		INSERT INTO site_stats (website_id, hour, page_views, visitors, sessions, bounce_count, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?, 0, ?, ?)
		ON CONFLICT (website_id, hour) DO UPDATE SET
			page_views = site_stats.page_views + 1,
			visitors = site_stats.visitors + ?,
			sessions = site_stats.sessions + ?,
			updated_at = ?
	`
	return tx.Exec(query, websiteID, hour, visitorInc, sessionInc, now, now, visitorInc, sessionInc, now).Error
}

// updateBounceCount tracks single-page sessions in the bucket of the session
// start. A new session counts as a bounce until its second page view arrives,
// which takes the bounce back out of the starting bucket.
func updateBounceCount(tx *gorm.DB, websiteID uint, session *visitors.Session, isNewSession bool) error {
	now := time.Now().UTC()
	startHour := truncateToHalfHour(session.StartedAt)

	if isNewSession {
		query := `
			INSERT INTO site_stats (website_id, hour, page_views, visitors, sessions, bounce_count, created_at, updated_at)
			VALUES (?, ?, 0, 0, 0, 1, ?, ?)
			ON CONFLICT (website_id, hour) DO UPDATE SET
				bounce_count = site_stats.bounce_count + 1,
				updated_at = ?
		`
		return tx.Exec(query, websiteID, startHour, now, now, now).Error
	}

	if session.PageCount == 2 {
		query := `
			UPDATE site_stats
			SET bounce_count = CASE WHEN bounce_count > 0 THEN bounce_count - 1 ELSE 0 END,
				updated_at = ?
			WHERE website_id = ? AND hour = ?
		`
		return tx.Exec(query, now, websiteID, startHour).Error
	}

	return nil
}

func updatePageStat(tx *gorm.DB, websiteID uint, pageURL string, hour time.Time, isNewVisitor bool) error {
	visitorInc := boolIncrement(isNewVisitor)
	now := time.Now().UTC()
	query := `
		INSERT INTO page_stats (website_id, page_url, hour, views, visitors, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (website_id, page_url, hour) DO UPDATE SET
			views = page_stats.views + 1,
			visitors = page_stats.visitors + ?,
			updated_at = ?
	`
	return tx.Exec(query, websiteID, pageURL, hour, visitorInc, now, now, visitorInc, now).Error
}

func updateRefStat(tx *gorm.DB, websiteID uint, referrer string, hour time.Time, isNewVisitor, isNewSession bool) error {
	visitorInc := boolIncrement(isNewVisitor)
	sessionInc := boolIncrement(isNewSession)
	now := time.Now().UTC()
	query := `
		INSERT INTO ref_stats (website_id, referrer, hour, page_views, visitors, sessions, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?, ?, ?)
		ON CONFLICT (website_id, referrer, hour) DO UPDATE SET
			page_views = ref_stats.page_views + 1,
			visitors = ref_stats.visitors + ?,
			sessions = ref_stats.sessions + ?,
			updated_at = ?
	`
	return tx.Exec(query, websiteID, referrer, hour, visitorInc, sessionInc, now, now, visitorInc, sessionInc, now).Error
}

func updateDeviceStat(tx *gorm.DB, websiteID uint, deviceType string, hour time.Time, isNewVisitor bool) error {
	visitorInc := boolIncrement(isNewVisitor)
	now := time.Now().UTC()
	query := `
		INSERT INTO device_stats (website_id, device_type, hour, page_views, visitors, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (website_id, device_type, hour) DO UPDATE SET
			page_views = device_stats.page_views + 1,
			visitors = device_stats.visitors + ?,
			updated_at = ?
	`
	return tx.Exec(query, websiteID, deviceType, hour, visitorInc, now, now, visitorInc, now).Error
}

// bucketUnixSQL yields the half-hour bucket of an events timestamp as unix
// seconds. Bucket times cross the SQL boundary as integers so every stored
// hour value is written by the driver in one format.
const bucketUnixSQL = "(strftime('%s', timestamp) / 1800) * 1800"

// RebuildRollupsForRange recomputes every rollup bucket that overlaps
// [from, to) straight from the event log, replacing whatever the incremental
// path wrote there. Bucket-local visitor and session counts become
// bucket-first-appearance counts, and bounces single-page-view sessions
// within the bucket.
func RebuildRollupsForRange(tx *gorm.DB, logger *slog.Logger, from, to time.Time) error {
	from = truncateToHalfHour(from.UTC())
	to = to.UTC()
	now := time.Now().UTC()

	for _, table := range []string{"site_stats", "page_stats", "ref_stats", "device_stats"} {
		if err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE hour >= ? AND hour < ?", table), from, to).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	var siteRows []struct {
		WebsiteID  uint
		BucketUnix int64
		PageViews  int64
		Visitors   int64
		Sessions   int64
	}
	err := tx.Raw(fmt.Sprintf(`
		SELECT website_id, %s AS bucket_unix,
			COUNT(*) AS page_views,
			COUNT(DISTINCT visitor_id) AS visitors,
			COUNT(DISTINCT session_token) AS sessions
		FROM events
		WHERE event_type = ? AND timestamp >= ? AND timestamp < ?
		GROUP BY website_id, bucket_unix
	`, bucketUnixSQL), EventTypePageView, from, to).Scan(&siteRows).Error
	if err != nil {
		return fmt.Errorf("failed to aggregate site buckets: %w", err)
	}

	var bounceRows []struct {
		WebsiteID  uint
		BucketUnix int64
		Bounces    int64
	}
	err = tx.Raw(fmt.Sprintf(`
		SELECT website_id, bucket_unix, COUNT(*) AS bounces
		FROM (
			SELECT website_id, %s AS bucket_unix, session_token
			FROM events
			WHERE event_type = ? AND timestamp >= ? AND timestamp < ?
			GROUP BY website_id, bucket_unix, session_token
			HAVING COUNT(*) = 1
		)
		GROUP BY website_id, bucket_unix
	`, bucketUnixSQL), EventTypePageView, from, to).Scan(&bounceRows).Error
	if err != nil {
		return fmt.Errorf("failed to aggregate bounce buckets: %w", err)
	}

	bounces := make(map[[2]int64]int64, len(bounceRows))
	for _, row := range bounceRows {
		bounces[[2]int64{int64(row.WebsiteID), row.BucketUnix}] = row.Bounces
	}

	for _, row := range siteRows {
		hour := time.Unix(row.BucketUnix, 0).UTC()
		bounceCount := bounces[[2]int64{int64(row.WebsiteID), row.BucketUnix}]
		err := tx.Exec(`
			INSERT INTO site_stats (website_id, hour, page_views, visitors, sessions, bounce_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, row.WebsiteID, hour, row.PageViews, row.Visitors, row.Sessions, bounceCount, now, now).Error
		if err != nil {
			return fmt.Errorf("failed to rebuild site_stats: %w", err)
		}
	}

	var pageRows []struct {
		WebsiteID  uint
		PageURL    string
		BucketUnix int64
		Views      int64
		Visitors   int64
	}
	err = tx.Raw(fmt.Sprintf(`
		SELECT website_id, page_url, %s AS bucket_unix,
			COUNT(*) AS views, COUNT(DISTINCT visitor_id) AS visitors
		FROM events
		WHERE event_type = ? AND timestamp >= ? AND timestamp < ?
		GROUP BY website_id, page_url, bucket_unix
	`, bucketUnixSQL), EventTypePageView, from, to).Scan(&pageRows).Error
	if err != nil {
		return fmt.Errorf("failed to aggregate page buckets: %w", err)
	}
	for _, row := range pageRows {
		hour := time.Unix(row.BucketUnix, 0).UTC()
		err := tx.Exec(`
			INSERT INTO page_stats (website_id, page_url, hour, views, visitors, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, row.WebsiteID, row.PageURL, hour, row.Views, row.Visitors, now, now).Error
		if err != nil {
			return fmt.Errorf("failed to rebuild page_stats: %w", err)
		}
	}

	var refRows []struct {
		WebsiteID  uint
		Referrer   string
		BucketUnix int64
		PageViews  int64
		Visitors   int64
		Sessions   int64
	}
	err = tx.Raw(fmt.Sprintf(`
		SELECT website_id, referrer, %s AS bucket_unix,
			COUNT(*) AS page_views, COUNT(DISTINCT visitor_id) AS visitors, COUNT(DISTINCT session_token) AS sessions
		FROM events
		WHERE event_type = ? AND timestamp >= ? AND timestamp < ?
		GROUP BY website_id, referrer, bucket_unix
	`, bucketUnixSQL), EventTypePageView, from, to).Scan(&refRows).Error
	if err != nil {
		return fmt.Errorf("failed to aggregate referrer buckets: %w", err)
	}
	for _, row := range refRows {
		hour := time.Unix(row.BucketUnix, 0).UTC()
		err := tx.Exec(`
			INSERT INTO ref_stats (website_id, referrer, hour, page_views, visitors, sessions, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, row.WebsiteID, row.Referrer, hour, row.PageViews, row.Visitors, row.Sessions, now, now).Error
		if err != nil {
			return fmt.Errorf("failed to rebuild ref_stats: %w", err)
		}
	}

	var deviceRows []struct {
		WebsiteID  uint
		DeviceType string
		BucketUnix int64
		PageViews  int64
		Visitors   int64
	}
	err = tx.Raw(fmt.Sprintf(`
		SELECT website_id, device_type, %s AS bucket_unix,
			COUNT(*) AS page_views, COUNT(DISTINCT visitor_id) AS visitors
		FROM events
		WHERE event_type = ? AND timestamp >= ? AND timestamp < ?
		GROUP BY website_id, device_type, bucket_unix
	`, bucketUnixSQL), EventTypePageView, from, to).Scan(&deviceRows).Error
	if err != nil {
		return fmt.Errorf("failed to aggregate device buckets: %w", err)
	}
	for _, row := range deviceRows {
		hour := time.Unix(row.BucketUnix, 0).UTC()
		err := tx.Exec(`
			INSERT INTO device_stats (website_id, device_type, hour, page_views, visitors, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, row.WebsiteID, row.DeviceType, hour, row.PageViews, row.Visitors, now, now).Error
		if err != nil {
			return fmt.Errorf("failed to rebuild device_stats: %w", err)
		}
	}

	logger.Info("Rebuilt rollup buckets",
		slog.Time("from", from),
		slog.Time("to", to))
	return nil
}
