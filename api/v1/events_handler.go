package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"beaconly/internal/events"
	"beaconly/internal/visitors"
	"beaconly/internal/websites"
)

const defaultEventsLimit = 100

type listedEvent struct {
	ID           uint      `json:"id"`
	EventType    string    `json:"eventType"`
	PageURL      string    `json:"pageUrl"`
	Referrer     string    `json:"referrer,omitempty"`
	DeviceType   string    `json:"deviceType,omitempty"`
	Browser      string    `json:"browser,omitempty"`
	OS           string    `json:"os,omitempty"`
	VisitorAlias string    `json:"visitorAlias,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ListEventsHandler returns the most recent events of a website, newest
// first, filterable by event type and paginated with limit/offset.
func ListEventsHandler(ctx *cartridge.Context) error {
	trackingCode := ctx.Query("trackingCode")
	if trackingCode == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   events.ErrCodeValidation,
			"message": "trackingCode query parameter is required",
		})
	}

	db := ctx.DBManager.GetConnection()
	website, err := websites.GetWebsiteByTrackingCode(db, trackingCode)
	if err != nil {
		if websites.IsNotFound(err) {
			return ctx.Status(http.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   events.ErrCodeNotFound,
				"message": "Website not found",
			})
		}
		return internalError(ctx, err, "Failed to load website")
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", strconv.Itoa(defaultEventsLimit)))
	offset, _ := strconv.Atoi(ctx.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	result, err := events.GetFilteredEvents(db, events.EventFilters{
		WebsiteID: website.ID,
		EventType: ctx.Query("eventType"),
		URLFilter: ctx.Query("url"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return internalError(ctx, err, "Failed to load events")
	}

	aliases := visitorAliases(db, result.Events)
	listed := make([]listedEvent, len(result.Events))
	for i, e := range result.Events {
		listed[i] = listedEvent{
			ID:         e.ID,
			EventType:  e.EventType,
			PageURL:    e.PageURL,
			Referrer:   e.Referrer,
			DeviceType: e.DeviceType,
			Browser:    e.Browser,
			OS:         e.OS,
			Timestamp:  e.Timestamp,
		}
		if e.VisitorID != nil {
			listed[i].VisitorAlias = aliases[*e.VisitorID]
		}
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"events":  listed,
		"total":   result.Total,
		"limit":   limit,
		"offset":  offset,
	})
}

// visitorAliases resolves the display aliases for every visitor referenced
// by the listed events in one query.
func visitorAliases(db *gorm.DB, listed []events.Event) map[uint]string {
	ids := make([]uint, 0, len(listed))
	seen := make(map[uint]bool, len(listed))
	for _, e := range listed {
		if e.VisitorID != nil && !seen[*e.VisitorID] {
			seen[*e.VisitorID] = true
			ids = append(ids, *e.VisitorID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var rows []visitors.Visitor
	if err := db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil
	}
	aliases := make(map[uint]string, len(rows))
	for _, v := range rows {
		aliases[v.ID] = visitors.Alias(v.Fingerprint)
	}
	return aliases
}
