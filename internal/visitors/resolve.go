package visitors

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ResolveVisitor finds or creates the Visitor row for a fingerprint using a
// single upsert, so concurrent first-contact requests converge on one row
// with an accurate page view counter. countPageView controls whether the
// page_views counter advances; non-pageview events only refresh last_seen_at.
func ResolveVisitor(tx *gorm.DB, websiteID uint, fingerprint string, at time.Time, countPageView bool) (*Visitor, error) {
	at = at.UTC()
	increment := 0
	if countPageView {
		increment = 1
	}

	err := tx.Exec(`
		INSERT INTO visitors (website_id, fingerprint, first_seen_at, last_seen_at, page_views)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (website_id, fingerprint) DO UPDATE SET
			last_seen_at = CASE WHEN excluded.last_seen_at > visitors.last_seen_at THEN excluded.last_seen_at ELSE visitors.last_seen_at END,
			page_views = visitors.page_views + ?
	`, websiteID, fingerprint, at, at, increment, increment).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert visitor: %w", err)
	}

	var visitor Visitor
	if err := tx.Where("website_id = ? AND fingerprint = ?", websiteID, fingerprint).First(&visitor).Error; err != nil {
		return nil, fmt.Errorf("failed to load visitor after upsert: %w", err)
	}
	return &visitor, nil
}

// ResolveSession finds or creates the Session row for a client session token.
// The configured inactivity timeout (see Session.IsExpired) is deliberately
// not consulted here: an existing row is extended even when the timeout has
// passed, because token rotation is the client's job and window metrics are
// derived from the event log, not from this row. The stored session reflects
// the full lifetime of the token; the timeout is advisory, for consumers
// that want to present a session as closed.
func ResolveSession(tx *gorm.DB, websiteID, visitorID uint, token string, at time.Time) (*Session, error) {
	at = at.UTC()

	err := tx.Exec(`
		INSERT INTO sessions (website_id, token, visitor_id, started_at, last_activity_at, page_count, duration_seconds)
		VALUES (?, ?, ?, ?, ?, 1, 0)
		ON CONFLICT (website_id, token) DO UPDATE SET
			last_activity_at = CASE WHEN excluded.last_activity_at > sessions.last_activity_at THEN excluded.last_activity_at ELSE sessions.last_activity_at END,
			page_count = sessions.page_count + 1,
			duration_seconds = CAST((julianday(MAX(excluded.last_activity_at, sessions.last_activity_at)) - julianday(sessions.started_at)) * 86400 AS INTEGER)
	`, websiteID, token, visitorID, at, at).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}

	var session Session
	if err := tx.Where("website_id = ? AND token = ?", websiteID, token).First(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to load session after upsert: %w", err)
	}
	return &session, nil
}

// IsExpired reports whether a session has been inactive longer than the
// configured timeout at the given instant. The ingestion path never acts on
// this; it exists for consumers deciding whether to present a session as
// still open.
func (s *Session) IsExpired(at time.Time, timeoutSeconds int) bool {
	return at.Sub(s.LastActivityAt) > time.Duration(timeoutSeconds)*time.Second
}
