package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"beaconly/internal/analytics"
	"beaconly/internal/events"
	"beaconly/internal/timeframe"
	"beaconly/internal/websites"
)

const (
	defaultDaysBack = 30
	maxDaysBack     = 365
	topListLimit    = 10
)

// dashboardScope is the validated (website, window) pair shared by every
// dashboard endpoint.
type dashboardScope struct {
	Website  *websites.Website
	DaysBack int
}

func resolveDashboardScope(ctx *cartridge.Context) (*dashboardScope, error) {
	websiteID, err := strconv.Atoi(ctx.Query("website_id"))
	if err != nil || websiteID < 1 {
		return nil, fiber.NewError(http.StatusBadRequest, "website_id query parameter is required")
	}

	daysBack, _ := strconv.Atoi(ctx.Query("days", strconv.Itoa(defaultDaysBack)))
	if daysBack < 1 {
		daysBack = defaultDaysBack
	}
	if daysBack > maxDaysBack {
		daysBack = maxDaysBack
	}

	website, err := websites.GetWebsiteByID(ctx.DBManager.GetConnection(), uint(websiteID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(http.StatusNotFound, "Website not found")
		}
		return nil, err
	}

	return &dashboardScope{Website: &website, DaysBack: daysBack}, nil
}

func (s *dashboardScope) queryParams() analytics.WebsiteScopedQueryParams {
	params := analytics.NewWebsiteScopedQueryParams(timeframe.NewTimeFrameForDays(s.DaysBack), s.Website.ID)
	params.Limit = topListLimit
	return params
}

func (s *dashboardScope) respond(ctx *cartridge.Context, data interface{}) error {
	return ctx.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"website": s.Website.ID,
		"period":  strconv.Itoa(s.DaysBack) + " days",
	})
}

// GetDashboardMetricsHandler serves the five headline metrics with their
// period-over-period changes.
func GetDashboardMetricsHandler(ctx *cartridge.Context) error {
	scope, err := resolveDashboardScope(ctx)
	if err != nil {
		return respondScopeError(ctx, err)
	}

	metrics, err := analytics.GetDashboardMetrics(ctx.DBManager.GetConnection(), scope.Website.ID, scope.DaysBack)
	if err != nil {
		return internalError(ctx, err, "Failed to compute dashboard metrics")
	}
	return scope.respond(ctx, metrics)
}

// GetDashboardPageViewsHandler serves the bucketed page view time series.
func GetDashboardPageViewsHandler(ctx *cartridge.Context) error {
	scope, err := resolveDashboardScope(ctx)
	if err != nil {
		return respondScopeError(ctx, err)
	}

	series, err := analytics.AggregatedPageViewsInTimeFrame(ctx.DBManager.GetConnection(), scope.queryParams())
	if err != nil {
		return internalError(ctx, err, "Failed to compute page view series")
	}
	return scope.respond(ctx, series)
}

// GetDashboardTopPagesHandler serves the top pages ranking.
func GetDashboardTopPagesHandler(ctx *cartridge.Context) error {
	scope, err := resolveDashboardScope(ctx)
	if err != nil {
		return respondScopeError(ctx, err)
	}

	pages, err := analytics.GetTopPages(ctx.DBManager.GetConnection(), scope.queryParams())
	if err != nil {
		return internalError(ctx, err, "Failed to compute top pages")
	}
	return scope.respond(ctx, pages)
}

// GetDashboardReferrersHandler serves the traffic source breakdown.
func GetDashboardReferrersHandler(ctx *cartridge.Context) error {
	scope, err := resolveDashboardScope(ctx)
	if err != nil {
		return respondScopeError(ctx, err)
	}

	sources, err := analytics.GetTrafficSources(ctx.DBManager.GetConnection(), scope.queryParams())
	if err != nil {
		return internalError(ctx, err, "Failed to compute traffic sources")
	}
	return scope.respond(ctx, sources)
}

// GetDashboardDevicesHandler serves the device type breakdown.
func GetDashboardDevicesHandler(ctx *cartridge.Context) error {
	scope, err := resolveDashboardScope(ctx)
	if err != nil {
		return respondScopeError(ctx, err)
	}

	breakdown, err := analytics.GetDeviceStats(ctx.DBManager.GetConnection(), scope.queryParams())
	if err != nil {
		return internalError(ctx, err, "Failed to compute device stats")
	}
	return scope.respond(ctx, breakdown)
}

func respondScopeError(ctx *cartridge.Context, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := events.ErrCodeValidation
		if fiberErr.Code == http.StatusNotFound {
			code = events.ErrCodeNotFound
		}
		return ctx.Status(fiberErr.Code).JSON(fiber.Map{
			"success": false,
			"error":   code,
			"message": fiberErr.Message,
		})
	}
	return internalError(ctx, err, "Failed to resolve dashboard scope")
}

func internalError(ctx *cartridge.Context, err error, message string) error {
	ctx.Logger.Error(message, slog.Any("error", err))
	return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   events.ErrCodeInternal,
		"message": message,
	})
}
