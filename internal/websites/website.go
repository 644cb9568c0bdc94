package websites

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrackingCodePrefix prefixes every generated tracking code.
const TrackingCodePrefix = "bl-"

// WebsiteNotFoundError represents an error when no active website matches a tracking code.
// Inactive and unknown tracking codes are indistinguishable to callers.
type WebsiteNotFoundError struct {
	TrackingCode string
}

func (e *WebsiteNotFoundError) Error() string {
	return fmt.Sprintf("website not found for tracking code: %s", e.TrackingCode)
}

// NewWebsiteNotFoundError creates a new WebsiteNotFoundError
func NewWebsiteNotFoundError(trackingCode string) *WebsiteNotFoundError {
	return &WebsiteNotFoundError{TrackingCode: trackingCode}
}

// IsNotFound reports whether err is a WebsiteNotFoundError.
func IsNotFound(err error) bool {
	var nf *WebsiteNotFoundError
	return errors.As(err, &nf)
}

// Website represents a tracked website. The tracking code is the public,
// immutable identifier embedded in browser snippets.
type Website struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint      `gorm:"index" json:"user_id"`
	Domain       string    `gorm:"not null" json:"domain"`
	TrackingCode string    `gorm:"uniqueIndex;not null" json:"tracking_code"`
	Active       bool      `gorm:"default:true" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewTrackingCode generates a fresh public tracking code.
func NewTrackingCode() string {
	return TrackingCodePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// GetWebsiteByTrackingCode retrieves the active website registered under the
// given tracking code. Unknown or inactive codes return WebsiteNotFoundError.
func GetWebsiteByTrackingCode(tx *gorm.DB, trackingCode string) (*Website, error) {
	var website Website
	if err := tx.Where("tracking_code = ? AND active = ?", trackingCode, true).First(&website).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewWebsiteNotFoundError(trackingCode)
		}
		return nil, fmt.Errorf("unexpected error querying website: %w", err)
	}
	return &website, nil
}

// GetWebsiteByID retrieves a website by its ID
func GetWebsiteByID(db *gorm.DB, id uint) (Website, error) {
	var website Website
	if err := db.First(&website, id).Error; err != nil {
		return Website{}, err
	}
	return website, nil
}

// GetWebsiteByDomain retrieves a website by its domain
func GetWebsiteByDomain(db *gorm.DB, domain string) (*Website, error) {
	var website Website
	if err := db.Where("domain = ?", domain).First(&website).Error; err != nil {
		return nil, err
	}
	return &website, nil
}

// GetAllWebsites retrieves all websites
func GetAllWebsites(db *gorm.DB) ([]Website, error) {
	var all []Website
	if err := db.Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to get websites: %w", err)
	}
	return all, nil
}

// CreateWebsite creates a new website, generating a tracking code when absent.
func CreateWebsite(db *gorm.DB, website *Website) error {
	website.CreatedAt = time.Now().UTC()

	if website.TrackingCode == "" {
		website.TrackingCode = NewTrackingCode()
	}
	website.Active = true

	return db.Create(website).Error
}

// UpdateWebsite updates an existing website. The tracking code is immutable.
func UpdateWebsite(db *gorm.DB, website *Website) error {
	return db.Model(website).
		Select("domain", "active").
		Updates(map[string]interface{}{"domain": website.Domain, "active": website.Active}).Error
}

// DeleteWebsite deletes a website by its ID
func DeleteWebsite(db *gorm.DB, id uint) error {
	result := db.Delete(&Website{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// BaseDomainForHost returns the canonical base domain for a hostname, preserving localhost
// semantics while collapsing known subdomain patterns (e.g. foo.example.com -> example.com).
func BaseDomainForHost(host string) string {
	return stripSubdomains(host)
}

// stripSubdomains extracts the base domain from a hostname
func stripSubdomains(host string) string {
	parts := strings.Split(strings.ToLower(host), ".")
	if len(parts) < 2 {
		return host // e.g., "localhost" -> "localhost"
	}

	// Special case for localhost subdomains (e.g., "sub.localhost" -> "localhost")
	lastPart := parts[len(parts)-1]
	if lastPart == "localhost" {
		return "localhost"
	}

	secondLast := parts[len(parts)-2]

	// Common ccTLDs that use a two-part structure need three parts kept.
	ccTLDPatterns := map[string]bool{
		"co.uk":  true,
		"co.jp":  true,
		"co.za":  true,
		"co.nz":  true,
		"co.in":  true,
		"com.au": true,
		"com.br": true,
		"org.uk": true,
		"gov.uk": true,
		"edu.au": true,
		"ac.uk":  true,
		"ne.jp":  true,
		"or.jp":  true,
	}

	if len(parts) > 2 {
		twoPartTLD := fmt.Sprintf("%s.%s", secondLast, lastPart)
		if ccTLDPatterns[twoPartTLD] {
			thirdLast := parts[len(parts)-3]
			return fmt.Sprintf("%s.%s.%s", thirdLast, secondLast, lastPart) // e.g., "example.co.uk"
		}
	}

	return fmt.Sprintf("%s.%s", secondLast, lastPart) // e.g., "example.com"
}

// WebsiteWithStats represents a website with additional event statistics
type WebsiteWithStats struct {
	ID           uint      `json:"id"`
	Domain       string    `json:"domain"`
	TrackingCode string    `json:"tracking_code"`
	CreatedAt    time.Time `json:"created_at"`
	EventCount   int64     `json:"event_count"`
}

// GetWebsitesWithStats retrieves all websites enriched with event count statistics
func GetWebsitesWithStats(db *gorm.DB, daysBack int) ([]WebsiteWithStats, error) {
	allWebsites, err := GetAllWebsites(db)
	if err != nil {
		return nil, fmt.Errorf("failed to get websites: %w", err)
	}

	result := make([]WebsiteWithStats, len(allWebsites))
	timeLimit := time.Now().UTC().AddDate(0, 0, -daysBack)

	for i, website := range allWebsites {
		var eventCount int64
		err := db.Table("events").
			Where("website_id = ? AND timestamp >= ?", website.ID, timeLimit).
			Count(&eventCount).Error
		if err != nil {
			eventCount = 0
		}

		result[i] = WebsiteWithStats{
			ID:           website.ID,
			Domain:       website.Domain,
			TrackingCode: website.TrackingCode,
			CreatedAt:    website.CreatedAt,
			EventCount:   eventCount,
		}
	}

	return result, nil
}
