package analytics

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"beaconly/internal/events"
	"beaconly/internal/timeframe"
)

// AggregatedPageViewsInTimeFrame returns the bucketed page view series for
// the window. The series reads from the site_stats rollup; any leading part
// of the window the rollup does not cover, because retention aged those
// buckets out or the cache is cold, is filled from the event log instead.
// Raw events outlive the rollups, so the chart never depends on cache
// freshness.
func AggregatedPageViewsInTimeFrame(db *gorm.DB, params WebsiteScopedQueryParams) ([]timeframe.DateStat, error) {
	from, to := params.TimeFrame.From.UTC(), params.TimeFrame.To.UTC()

	coverageStart, err := rollupCoverageStart(db, params.WebsiteID, from, to)
	if err != nil {
		return nil, err
	}

	if coverageStart == nil {
		// No rollup rows in the window at all.
		result, err := pageViewsFromEvents(db, params, from, to)
		if err != nil {
			return nil, err
		}
		return params.TimeFrame.BuildTimeSeriesPoints(result), nil
	}

	result, err := pageViewsFromRollup(db, params)
	if err != nil {
		return nil, err
	}

	if coverageStart.After(from) {
		// Bucket boundaries keep the two sources disjoint: everything before
		// the first rollup bucket comes from events, everything after from
		// the rollup. BuildTimeSeriesPoints sums rows landing in one bucket.
		prefix, err := pageViewsFromEvents(db, params, from, *coverageStart)
		if err != nil {
			return nil, err
		}
		result = append(prefix, result...)
	}

	return params.TimeFrame.BuildTimeSeriesPoints(result), nil
}

// rollupCoverageStart returns the earliest rollup bucket for the website
// inside [from, to), or nil when the window has no rollup rows. Retention
// trims old buckets first, so coverage gaps are always a window prefix.
func rollupCoverageStart(db *gorm.DB, websiteID uint, from, to time.Time) (*time.Time, error) {
	var stat SiteStat
	err := db.Where("website_id = ? AND hour >= ? AND hour < ?", websiteID, from, to).
		Order("hour ASC").
		Take(&stat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching rollup coverage: %w", err)
	}
	start := stat.Hour.UTC()
	return &start, nil
}

func pageViewsFromRollup(db *gorm.DB, params WebsiteScopedQueryParams) ([]timeframe.DateStat, error) {
	groupByExpression, err := params.TimeFrame.GetSQLiteGroupByExpression("hour")
	if err != nil {
		return nil, err
	}

	var results []timeframe.DateStat
	query := fmt.Sprintf(`
		SELECT
			%s AS date,
			COALESCE(SUM(page_views), 0) AS count
		FROM site_stats
		WHERE website_id = ?
			AND hour >= ? AND hour < ?
		GROUP BY %s
		ORDER BY date ASC
	`, groupByExpression, groupByExpression)
	err = db.Raw(query,
		params.WebsiteID,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
	).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching page view series from rollup: %w", err)
	}

	return results, nil
}

func pageViewsFromEvents(db *gorm.DB, params WebsiteScopedQueryParams, from, to time.Time) ([]timeframe.DateStat, error) {
	groupByExpression, err := params.TimeFrame.GetSQLiteGroupByExpression("timestamp")
	if err != nil {
		return nil, err
	}

	var results []timeframe.DateStat
	query := fmt.Sprintf(`
		SELECT
			%s AS date,
			COUNT(*) AS count
		FROM events
		WHERE website_id = ? AND event_type = ?
			AND timestamp >= ? AND timestamp < ?
		GROUP BY %s
		ORDER BY date ASC
	`, groupByExpression, groupByExpression)
	err = db.Raw(query,
		params.WebsiteID,
		events.EventTypePageView,
		from,
		to,
	).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching page view series from events: %w", err)
	}

	return results, nil
}

// GetFirstPageView returns the earliest page view event for a website, or
// nil when the website has no traffic yet.
func GetFirstPageView(db *gorm.DB, websiteID uint) (*events.Event, error) {
	var event events.Event
	err := db.Where("website_id = ? AND event_type = ?", websiteID, events.EventTypePageView).
		Order("timestamp ASC").
		First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching first page view: %w", err)
	}

	return &event, nil
}
