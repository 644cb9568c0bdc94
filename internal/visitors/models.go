// Package visitors resolves anonymous browser identities into stable
// Visitor and Session rows without ever persisting raw IP addresses.
package visitors

import "time"

// Visitor is the durable identity of a browser on a single website. The
// fingerprint is a salted hash; the same browser on two different websites
// yields two unrelated fingerprints.
type Visitor struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	WebsiteID   uint      `gorm:"not null;uniqueIndex:idx_visitors_unique" json:"website_id"`
	Fingerprint string    `gorm:"not null;uniqueIndex:idx_visitors_unique" json:"fingerprint"`
	FirstSeenAt time.Time `gorm:"not null" json:"first_seen_at"`
	LastSeenAt  time.Time `gorm:"not null;index" json:"last_seen_at"`
	PageViews   int64     `gorm:"not null;default:0" json:"page_views"`
}

// Session groups the activity of one visit. Tokens are generated client-side
// and scoped per website, so the same token on two websites names two rows.
type Session struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	WebsiteID       uint      `gorm:"not null;uniqueIndex:idx_sessions_unique" json:"website_id"`
	Token           string    `gorm:"not null;uniqueIndex:idx_sessions_unique" json:"token"`
	VisitorID       uint      `gorm:"not null;index" json:"visitor_id"`
	StartedAt       time.Time `gorm:"not null" json:"started_at"`
	LastActivityAt  time.Time `gorm:"not null;index" json:"last_activity_at"`
	PageCount       int64     `gorm:"not null;default:0" json:"page_count"`
	DurationSeconds int64     `gorm:"not null;default:0" json:"duration_seconds"`
}
