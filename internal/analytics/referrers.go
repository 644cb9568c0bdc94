package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"beaconly/internal/events"
)

// TrafficSource is one referrer bucket of the traffic breakdown.
type TrafficSource struct {
	Referrer  string `json:"referrer"`
	Visitors  int64  `json:"visitors"`
	Sessions  int64  `json:"sessions"`
	PageViews int64  `json:"pageViews"`
}

// GetTrafficSources groups in-window page views by referrer. Events with no
// referrer land in the "Direct" bucket; the normalization happens here at
// read time so the log keeps what the browser sent.
func GetTrafficSources(db *gorm.DB, params WebsiteScopedQueryParams) ([]TrafficSource, error) {
	var results []TrafficSource
	err := db.Raw(`
		SELECT
			COALESCE(NULLIF(referrer, ''), ?) AS referrer,
			COUNT(DISTINCT visitor_id) AS visitors,
			COUNT(DISTINCT session_token) AS sessions,
			COUNT(*) AS page_views
		FROM events
		WHERE website_id = ? AND event_type = ?
			AND timestamp >= ? AND timestamp < ?
		GROUP BY COALESCE(NULLIF(referrer, ''), ?)
		ORDER BY page_views DESC, referrer ASC
		LIMIT ?
	`, DirectReferrer, params.WebsiteID, events.EventTypePageView,
		params.TimeFrame.From.UTC(), params.TimeFrame.To.UTC(),
		DirectReferrer, params.Limit).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching traffic sources: %w", err)
	}

	if results == nil {
		results = []TrafficSource{}
	}
	return results, nil
}
