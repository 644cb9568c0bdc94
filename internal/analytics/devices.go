package analytics

import (
	"fmt"

	"gorm.io/gorm"

	"beaconly/internal/events"
	"beaconly/internal/pkg/useragent"
)

// DeviceBreakdown counts distinct visitors per device bucket.
type DeviceBreakdown struct {
	Mobile  int64 `json:"mobile"`
	Desktop int64 `json:"desktop"`
	Tablet  int64 `json:"tablet"`
	Other   int64 `json:"other"`
}

// GetDeviceStats breaks in-window visitors down by the device type stored on
// their page view events. Unknown buckets fold into "other".
func GetDeviceStats(db *gorm.DB, params WebsiteScopedQueryParams) (*DeviceBreakdown, error) {
	var rows []struct {
		DeviceType string
		Visitors   int64
	}
	err := db.Raw(`
		SELECT device_type, COUNT(DISTINCT visitor_id) AS visitors
		FROM events
		WHERE website_id = ? AND event_type = ?
			AND timestamp >= ? AND timestamp < ?
		GROUP BY device_type
	`, params.WebsiteID, events.EventTypePageView,
		params.TimeFrame.From.UTC(), params.TimeFrame.To.UTC()).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching device stats: %w", err)
	}

	breakdown := &DeviceBreakdown{}
	for _, row := range rows {
		switch row.DeviceType {
		case useragent.DeviceMobile:
			breakdown.Mobile += row.Visitors
		case useragent.DeviceDesktop:
			breakdown.Desktop += row.Visitors
		case useragent.DeviceTablet:
			breakdown.Tablet += row.Visitors
		default:
			breakdown.Other += row.Visitors
		}
	}

	return breakdown, nil
}
