package analytics

import (
	"beaconly/internal/timeframe"
)

// WebsiteScopedQueryParams contains common parameters for website-scoped queries
type WebsiteScopedQueryParams struct {
	TimeFrame *timeframe.TimeFrame
	WebsiteID uint
	Limit     int // Number of records to return
}

// NewWebsiteScopedQueryParams creates query params with the specified time
// frame and website ID. A nil time frame defaults to the last 7 days.
func NewWebsiteScopedQueryParams(timeFrame *timeframe.TimeFrame, websiteID uint) WebsiteScopedQueryParams {
	if timeFrame == nil {
		timeFrame = timeframe.NewTimeFrameForDays(7)
	}

	return WebsiteScopedQueryParams{
		TimeFrame: timeFrame,
		WebsiteID: websiteID,
		Limit:     50, // Default limit
	}
}
