package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"beaconly/internal/events"
	"beaconly/internal/websites"
)

// ListWebsitesHandler returns every registered website together with its
// event volume over the requested window.
func ListWebsitesHandler(ctx *cartridge.Context) error {
	daysBack, _ := strconv.Atoi(ctx.Query("days", strconv.Itoa(defaultDaysBack)))
	if daysBack < 1 {
		daysBack = defaultDaysBack
	}
	if daysBack > maxDaysBack {
		daysBack = maxDaysBack
	}

	sites, err := websites.GetWebsitesWithStats(ctx.DBManager.GetConnection(), daysBack)
	if err != nil {
		return internalError(ctx, err, "Failed to load websites")
	}

	return ctx.JSON(fiber.Map{
		"success":  true,
		"websites": sites,
	})
}

// DeleteWebsiteHandler removes a website registration. Recorded events stay
// in the log; only the tracking-code binding goes away.
func DeleteWebsiteHandler(ctx *cartridge.Context) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id < 1 {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   events.ErrCodeValidation,
			"message": "Invalid website ID",
		})
	}

	if err := websites.DeleteWebsite(ctx.DBManager.GetConnection(), uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ctx.Status(http.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   events.ErrCodeNotFound,
				"message": "Website not found",
			})
		}
		return internalError(ctx, err, "Failed to delete website")
	}

	return ctx.SendStatus(http.StatusNoContent)
}
