// Package analytics answers dashboard queries over the event log and the
// half-hour rollup tables.
//
// Every metric is computed from the raw events table; the rollups only
// accelerate the page view time series and can always be rebuilt from the
// log. The package is organized into focused modules:
//   - analytics.go: rollup table model definitions
//   - totals.go: window totals (page views, visitors, sessions)
//   - sessions.go: bounce rate and session duration
//   - metrics.go: top pages
//   - referrers.go: traffic sources
//   - devices.go: device breakdown
//   - pageviews.go: bucketed page view series
//   - dashboard.go: headline metrics with period-over-period changes
package analytics

import (
	"time"
)

// DirectReferrer is the bucket empty referrers are reported under.
const DirectReferrer = "Direct"

// ===== Rollup Table Definitions =====

// SiteStat aggregates site-wide counts per half-hour bucket.
type SiteStat struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	WebsiteID   uint      `gorm:"uniqueIndex:idx_site_unique;not null"`
	Hour        time.Time `gorm:"uniqueIndex:idx_site_unique;type:datetime;not null"`
	PageViews   int64     `gorm:"not null;default:0"`
	Visitors    int64     `gorm:"not null;default:0"`
	Sessions    int64     `gorm:"not null;default:0"`
	BounceCount int64     `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PageStat aggregates per-page counts per half-hour bucket.
type PageStat struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	WebsiteID uint      `gorm:"uniqueIndex:idx_page_unique;not null"`
	PageURL   string    `gorm:"uniqueIndex:idx_page_unique;not null"`
	Hour      time.Time `gorm:"uniqueIndex:idx_page_unique;type:datetime;not null"`
	Views     int64     `gorm:"not null;default:0"`
	Visitors  int64     `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefStat aggregates per-referrer counts per half-hour bucket. Referrers are
// stored as received; empty values fold into "Direct" at read time.
type RefStat struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	WebsiteID uint      `gorm:"uniqueIndex:idx_ref_unique;not null"`
	Referrer  string    `gorm:"uniqueIndex:idx_ref_unique"`
	Hour      time.Time `gorm:"uniqueIndex:idx_ref_unique;type:datetime;not null"`
	PageViews int64     `gorm:"not null;default:0"`
	Visitors  int64     `gorm:"not null;default:0"`
	Sessions  int64     `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeviceStat aggregates per-device counts per half-hour bucket.
type DeviceStat struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	WebsiteID  uint      `gorm:"uniqueIndex:idx_device_unique;not null"`
	DeviceType string    `gorm:"uniqueIndex:idx_device_unique;not null"`
	Hour       time.Time `gorm:"uniqueIndex:idx_device_unique;type:datetime;not null"`
	PageViews  int64     `gorm:"not null;default:0"`
	Visitors   int64     `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
