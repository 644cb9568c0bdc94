package events

import (
	"time"

	"gorm.io/gorm"
)

// MaxQueryLimit caps how many events a single listing query may return.
const MaxQueryLimit = 1000

// EventFilters represents filtering options for the events listing.
type EventFilters struct {
	WebsiteID uint
	EventType string
	URLFilter string
	FromDate  time.Time
	ToDate    time.Time
	Limit     int
	Offset    int
}

// EventsResult represents a paginated events result.
type EventsResult struct {
	Events []Event
	Total  int64
}

// GetFilteredEvents retrieves filtered and paginated events, newest first.
func GetFilteredEvents(db *gorm.DB, filters EventFilters) (EventsResult, error) {
	query := db.Model(&Event{}).Where("website_id = ?", filters.WebsiteID)

	if !filters.FromDate.IsZero() {
		query = query.Where("timestamp >= ?", filters.FromDate)
	}
	if !filters.ToDate.IsZero() {
		query = query.Where("timestamp < ?", filters.ToDate)
	}
	if filters.EventType != "" {
		query = query.Where("event_type = ?", filters.EventType)
	}
	if filters.URLFilter != "" {
		query = query.Where("page_url LIKE ?", "%"+filters.URLFilter+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return EventsResult{}, err
	}

	limit := filters.Limit
	if limit <= 0 || limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	var result []Event
	if err := query.Order("timestamp DESC").
		Limit(limit).
		Offset(filters.Offset).
		Find(&result).Error; err != nil {
		return EventsResult{}, err
	}

	return EventsResult{
		Events: result,
		Total:  total,
	}, nil
}
