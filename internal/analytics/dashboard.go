package analytics

import (
	"fmt"
	"math"

	"gorm.io/gorm"

	"beaconly/internal/timeframe"
)

// DashboardMetrics carries the five headline figures for a window together
// with their movement against the preceding window of equal length.
type DashboardMetrics struct {
	PageViews          int64 `json:"pageViews"`
	UniqueVisitors     int64 `json:"uniqueVisitors"`
	Sessions           int64 `json:"sessions"`
	BounceRate         int64 `json:"bounceRate"`
	AvgSessionDuration int64 `json:"avgSessionDuration"`

	PageViewsChange          int64 `json:"pageViewsChange"`
	UniqueVisitorsChange     int64 `json:"uniqueVisitorsChange"`
	SessionsChange           int64 `json:"sessionsChange"`
	BounceRateChange         int64 `json:"bounceRateChange"`
	AvgSessionDurationChange int64 `json:"avgSessionDurationChange"`
}

type windowTotals struct {
	pageViews      int64
	uniqueVisitors int64
	sessions       int64
	bounceRate     int64
	avgDuration    int64
}

// GetDashboardMetrics computes the headline metrics for the last daysBack
// days and their change against the preceding equal window. Empty windows
// yield all zeros.
func GetDashboardMetrics(db *gorm.DB, websiteID uint, daysBack int) (*DashboardMetrics, error) {
	current := timeframe.NewTimeFrameForDays(daysBack)
	previous := current.Previous()

	currentTotals, err := collectWindowTotals(db, websiteID, current)
	if err != nil {
		return nil, fmt.Errorf("failed to collect current window metrics: %w", err)
	}
	previousTotals, err := collectWindowTotals(db, websiteID, previous)
	if err != nil {
		return nil, fmt.Errorf("failed to collect previous window metrics: %w", err)
	}

	return &DashboardMetrics{
		PageViews:          currentTotals.pageViews,
		UniqueVisitors:     currentTotals.uniqueVisitors,
		Sessions:           currentTotals.sessions,
		BounceRate:         currentTotals.bounceRate,
		AvgSessionDuration: currentTotals.avgDuration,

		PageViewsChange:      calculatePercentChange(currentTotals.pageViews, previousTotals.pageViews),
		UniqueVisitorsChange: calculatePercentChange(currentTotals.uniqueVisitors, previousTotals.uniqueVisitors),
		SessionsChange:       calculatePercentChange(currentTotals.sessions, previousTotals.sessions),
		// Bounce rate is already a percentage, so its change is reported in
		// absolute points rather than relative percent.
		BounceRateChange:         currentTotals.bounceRate - previousTotals.bounceRate,
		AvgSessionDurationChange: calculatePercentChange(currentTotals.avgDuration, previousTotals.avgDuration),
	}, nil
}

func collectWindowTotals(db *gorm.DB, websiteID uint, tf *timeframe.TimeFrame) (windowTotals, error) {
	params := WebsiteScopedQueryParams{TimeFrame: tf, WebsiteID: websiteID}

	pageViews, err := CountPageViews(db, params)
	if err != nil {
		return windowTotals{}, err
	}
	uniqueVisitors, err := CountUniqueVisitors(db, params)
	if err != nil {
		return windowTotals{}, err
	}
	sessions, err := CountSessions(db, params)
	if err != nil {
		return windowTotals{}, err
	}
	bounceRate, err := CalculateBounceRate(db, params)
	if err != nil {
		return windowTotals{}, err
	}
	avgDuration, err := CalculateAvgSessionDuration(db, params)
	if err != nil {
		return windowTotals{}, err
	}

	return windowTotals{
		pageViews:      pageViews,
		uniqueVisitors: uniqueVisitors,
		sessions:       sessions,
		bounceRate:     bounceRate,
		avgDuration:    avgDuration,
	}, nil
}

// calculatePercentChange reports the rounded relative movement between two
// windows. Growth from zero reads as 100%, zero to zero as no change.
func calculatePercentChange(current, previous int64) int64 {
	if previous > 0 {
		return int64(math.Round(100 * float64(current-previous) / float64(previous)))
	}
	if current > 0 {
		return 100
	}
	return 0
}
