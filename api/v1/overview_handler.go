package v1

import (
	"context"
	"fmt"

	"github.com/karloscodes/cartridge"

	"beaconly/internal/analytics"
	"beaconly/internal/pkg/async"
	"beaconly/internal/timeframe"
)

// GetDashboardOverviewHandler bundles the headline metrics, page view series
// and the three breakdowns into one response. The queries are independent
// reads, so they run in parallel.
func GetDashboardOverviewHandler(ctx *cartridge.Context) error {
	scope, err := resolveDashboardScope(ctx)
	if err != nil {
		return respondScopeError(ctx, err)
	}

	db := ctx.DBManager.GetConnection()
	queryParams := scope.queryParams()

	tasks := []async.Task{
		{
			Name: "metrics",
			Execute: func() (interface{}, error) {
				return analytics.GetDashboardMetrics(db, scope.Website.ID, scope.DaysBack)
			},
		},
		{
			Name: "pageViews",
			Execute: func() (interface{}, error) {
				series, err := analytics.AggregatedPageViewsInTimeFrame(db, queryParams)
				if err != nil {
					return []timeframe.DateStat{}, err
				}
				return series, nil
			},
		},
		{
			Name: "topPages",
			Execute: func() (interface{}, error) {
				return analytics.GetTopPages(db, queryParams)
			},
		},
		{
			Name: "referrers",
			Execute: func() (interface{}, error) {
				return analytics.GetTrafficSources(db, queryParams)
			},
		},
		{
			Name: "devices",
			Execute: func() (interface{}, error) {
				return analytics.GetDeviceStats(db, queryParams)
			},
		},
	}

	pool := async.NewPool(len(tasks))
	results := pool.Execute(context.Background(), tasks)

	for name, result := range results {
		if result.Err != nil {
			return internalError(ctx, fmt.Errorf("fetching %s: %w", name, result.Err), "Failed to compute dashboard overview")
		}
	}

	return scope.respond(ctx, map[string]interface{}{
		"metrics":   results["metrics"].Data,
		"pageViews": results["pageViews"].Data,
		"topPages":  results["topPages"].Data,
		"referrers": results["referrers"].Data,
		"devices":   results["devices"].Data,
	})
}
