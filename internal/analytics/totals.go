package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"beaconly/internal/events"
)

// CountPageViews counts page view events in the window.
func CountPageViews(db *gorm.DB, params WebsiteScopedQueryParams) (int64, error) {
	var count int64
	err := db.Model(&events.Event{}).
		Where("website_id = ? AND event_type = ? AND timestamp >= ? AND timestamp < ?",
			params.WebsiteID, events.EventTypePageView,
			params.TimeFrame.From.UTC(), params.TimeFrame.To.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting page views: %w", err)
	}
	return count, nil
}

// CountUniqueVisitors counts distinct visitors active in the window across
// all event types.
func CountUniqueVisitors(db *gorm.DB, params WebsiteScopedQueryParams) (int64, error) {
	var count int64
	err := db.Raw(`
		SELECT COUNT(DISTINCT visitor_id)
		FROM events
		WHERE website_id = ? AND visitor_id IS NOT NULL
			AND timestamp >= ? AND timestamp < ?
	`, params.WebsiteID, params.TimeFrame.From.UTC(), params.TimeFrame.To.UTC()).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting unique visitors: %w", err)
	}
	return count, nil
}

// CountSessions counts distinct sessions with at least one page view in the
// window.
func CountSessions(db *gorm.DB, params WebsiteScopedQueryParams) (int64, error) {
	var count int64
	err := db.Raw(`
		SELECT COUNT(DISTINCT session_token)
		FROM events
		WHERE website_id = ? AND event_type = ?
			AND timestamp >= ? AND timestamp < ?
	`, params.WebsiteID, events.EventTypePageView,
		params.TimeFrame.From.UTC(), params.TimeFrame.To.UTC()).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting sessions: %w", err)
	}
	return count, nil
}
