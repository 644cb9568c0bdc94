// Package events records tracking beacons into the append-only event log and
// keeps the half-hour rollup tables in step within the same transaction.
package events

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Event types accepted on the wire.
const (
	EventTypePageView = "pageview"
	EventTypeClick    = "click"
	EventTypeCustom   = "custom"
)

var validEventTypes = map[string]bool{
	EventTypePageView: true,
	EventTypeClick:    true,
	EventTypeCustom:   true,
}

// Event is one immutable row in the event log. Rows are never updated after
// insert; every metric is derivable from this table alone.
type Event struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	WebsiteID    uint      `gorm:"not null;index:idx_events_website_timestamp" json:"website_id"`
	VisitorID    *uint     `gorm:"index" json:"visitor_id"`
	SessionToken string    `gorm:"not null;index" json:"session_token"`
	EventType    string    `gorm:"not null" json:"event_type"`
	PageURL      string    `gorm:"not null" json:"page_url"`
	Referrer     string    `json:"referrer"`
	DeviceType   string    `json:"device_type"`
	Browser      string    `json:"browser"`
	OS           string    `json:"os"`
	Properties   string    `json:"properties"`
	Timestamp    time.Time `gorm:"not null;index:idx_events_website_timestamp" json:"timestamp"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecordEventInput carries one beacon through validation and recording. The
// IP address and user agent come from the request, never from the payload.
type RecordEventInput struct {
	TrackingCode string     `json:"trackingCode"`
	EventType    string     `json:"eventType"`
	URL          string     `json:"url"`
	Referrer     string     `json:"referrer"`
	SessionID    string     `json:"sessionId"`
	VisitorID    string     `json:"visitorId"`
	Properties   string     `json:"properties"`
	Timestamp    *time.Time `json:"timestamp"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// ValidationError reports a rejected beacon field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks the input and normalizes the event type. An empty event
// type defaults to pageview.
func (in *RecordEventInput) Validate() error {
	if strings.TrimSpace(in.TrackingCode) == "" {
		return &ValidationError{Field: "trackingCode", Message: "tracking code is required"}
	}
	if strings.TrimSpace(in.SessionID) == "" {
		return &ValidationError{Field: "sessionId", Message: "session id is required"}
	}
	if strings.TrimSpace(in.VisitorID) == "" {
		return &ValidationError{Field: "visitorId", Message: "visitor id is required"}
	}

	if in.EventType == "" {
		in.EventType = EventTypePageView
	}
	if !validEventTypes[in.EventType] {
		return &ValidationError{Field: "eventType", Message: fmt.Sprintf("unknown event type %q", in.EventType)}
	}

	if strings.TrimSpace(in.URL) == "" {
		return &ValidationError{Field: "url", Message: "url is required"}
	}
	parsed, err := url.Parse(in.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &ValidationError{Field: "url", Message: "url must be absolute"}
	}

	return nil
}

// BatchItemError reports one failed item of a batch by its position.
type BatchItemError struct {
	Index   int    `json:"index"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

// Error codes surfaced in batch item errors and single-event responses.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeInternal   = "INTERNAL_ERROR"
)

// BatchResult accumulates the per-item outcomes of RecordBatch.
type BatchResult struct {
	Created []*Event
	Errors  []BatchItemError
}

// AllFailed reports whether not a single item of the batch was recorded.
func (r *BatchResult) AllFailed() bool {
	return len(r.Created) == 0 && len(r.Errors) > 0
}
