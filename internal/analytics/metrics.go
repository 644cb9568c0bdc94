package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"beaconly/internal/events"
)

// TopPage is one row of the top-pages ranking.
type TopPage struct {
	PageURL     string `json:"pageUrl"`
	Views       int64  `json:"views"`
	Visitors    int64  `json:"uniqueVisitors"`
	BounceRate  int64  `json:"bounceRate"`
	AvgDuration int64  `json:"avgDuration"`
}

// GetTopPages ranks pages by in-window page views, with visitor counts and
// per-page bounce and duration figures. Ties in view counts break on URL so
// the ordering is deterministic.
func GetTopPages(db *gorm.DB, params WebsiteScopedQueryParams) ([]TopPage, error) {
	from, to := params.TimeFrame.From.UTC(), params.TimeFrame.To.UTC()

	var pages []TopPage
	err := db.Raw(`
		SELECT page_url, COUNT(*) AS views, COUNT(DISTINCT visitor_id) AS visitors
		FROM events
		WHERE website_id = ? AND event_type = ?
			AND timestamp >= ? AND timestamp < ?
		GROUP BY page_url
		ORDER BY views DESC, page_url ASC
		LIMIT ?
	`, params.WebsiteID, events.EventTypePageView, from, to, params.Limit).Scan(&pages).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching top pages: %w", err)
	}
	if len(pages) == 0 {
		return []TopPage{}, nil
	}

	// Per-page bounce rate and duration derive from the sessions that viewed
	// the page, judged over each session's full in-window activity.
	var pageSessions []struct {
		PageURL     string
		BounceRate  int64
		AvgDuration int64
	}
	err = db.Raw(`
		WITH session_stats AS (
			SELECT
				session_token,
				SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END) AS views,
				(julianday(MAX(timestamp)) - julianday(MIN(timestamp))) * 86400 AS span
			FROM events
			WHERE website_id = ?
				AND timestamp >= ? AND timestamp < ?
			GROUP BY session_token
		),
		page_sessions AS (
			SELECT DISTINCT page_url, session_token
			FROM events
			WHERE website_id = ? AND event_type = ?
				AND timestamp >= ? AND timestamp < ?
		)
		SELECT
			ps.page_url,
			CAST(ROUND(100.0 * SUM(CASE WHEN ss.views = 1 THEN 1 ELSE 0 END) / COUNT(*)) AS INTEGER) AS bounce_rate,
			CAST(ROUND(AVG(ss.span)) AS INTEGER) AS avg_duration
		FROM page_sessions ps
		JOIN session_stats ss ON ss.session_token = ps.session_token
		GROUP BY ps.page_url
	`, events.EventTypePageView, params.WebsiteID, from, to,
		params.WebsiteID, events.EventTypePageView, from, to).Scan(&pageSessions).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching per-page session stats: %w", err)
	}

	perPage := make(map[string]struct{ bounce, duration int64 }, len(pageSessions))
	for _, row := range pageSessions {
		perPage[row.PageURL] = struct{ bounce, duration int64 }{row.BounceRate, row.AvgDuration}
	}
	for i := range pages {
		if stats, ok := perPage[pages[i].PageURL]; ok {
			pages[i].BounceRate = stats.bounce
			pages[i].AvgDuration = stats.duration
		}
	}

	return pages, nil
}
