package analytics

import (
	"fmt"
	"math"

	"gorm.io/gorm"

	"beaconly/internal/events"
)

// CalculateBounceRate returns the share of in-window sessions with exactly
// one page view, as a rounded percentage. Windows without sessions yield 0.
func CalculateBounceRate(db *gorm.DB, params WebsiteScopedQueryParams) (int64, error) {
	var result struct {
		Sessions int64
		Bounces  int64
	}

	// A session is scoped to the window: only its in-window page views count.
	query := `
		WITH session_views AS (
			SELECT session_token, COUNT(*) AS views
			FROM events
			WHERE website_id = ? AND event_type = ?
				AND timestamp >= ? AND timestamp < ?
			GROUP BY session_token
		)
		SELECT
			COUNT(*) AS sessions,
			SUM(CASE WHEN views = 1 THEN 1 ELSE 0 END) AS bounces
		FROM session_views
	`
	err := db.Raw(query, params.WebsiteID, events.EventTypePageView,
		params.TimeFrame.From.UTC(), params.TimeFrame.To.UTC()).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error calculating bounce rate: %w", err)
	}

	if result.Sessions == 0 {
		return 0, nil
	}
	return int64(math.Round(100 * float64(result.Bounces) / float64(result.Sessions))), nil
}

// CalculateAvgSessionDuration returns the mean session length in seconds,
// rounded. Every session with at least one in-window event of any type
// enters the average; a session's length is the span between its first and
// last in-window event, so single-event sessions contribute zero.
func CalculateAvgSessionDuration(db *gorm.DB, params WebsiteScopedQueryParams) (int64, error) {
	var result struct {
		AvgDuration float64
	}

	query := `
		WITH session_spans AS (
			SELECT
				session_token,
				(julianday(MAX(timestamp)) - julianday(MIN(timestamp))) * 86400 AS span
			FROM events
			WHERE website_id = ?
				AND timestamp >= ? AND timestamp < ?
			GROUP BY session_token
		)
		SELECT COALESCE(AVG(span), 0) AS avg_duration
		FROM session_spans
	`
	err := db.Raw(query, params.WebsiteID,
		params.TimeFrame.From.UTC(), params.TimeFrame.To.UTC()).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("error calculating session duration: %w", err)
	}

	return int64(math.Round(result.AvgDuration)), nil
}
