// Package timeframe models the half-open query windows the analytics queries
// operate on and turns grouped SQLite results into gap-free time series.
package timeframe

import (
	"fmt"
	"time"
)

// DateStat is one bucketed point of a time series.
type DateStat struct {
	Date  string
	Count int
}

type TimeFrameBucketSize string

const (
	TimeFrameBucketSizeYear  TimeFrameBucketSize = "year"
	TimeFrameBucketSizeMonth TimeFrameBucketSize = "month"
	TimeFrameBucketSizeWeek  TimeFrameBucketSize = "week"
	TimeFrameBucketSizeDay   TimeFrameBucketSize = "day"
	TimeFrameBucketSizeHour  TimeFrameBucketSize = "hour"
)

type TimeFrameSize struct {
	DBFormat   string
	BucketSize TimeFrameBucketSize
}

// Predefined TimeFrameSizes
var (
	HourlyTimeFrame  = TimeFrameSize{DBFormat: "%Y-%m-%d %H:00:00", BucketSize: TimeFrameBucketSizeHour}
	DailyTimeFrame   = TimeFrameSize{DBFormat: "%Y-%m-%d", BucketSize: TimeFrameBucketSizeDay}
	WeeklyTimeFrame  = TimeFrameSize{DBFormat: "%Y-%m-%d", BucketSize: TimeFrameBucketSizeWeek}
	MonthlyTimeFrame = TimeFrameSize{DBFormat: "%Y-%m-01", BucketSize: TimeFrameBucketSizeMonth}
	YearlyTimeFrame  = TimeFrameSize{DBFormat: "%Y", BucketSize: TimeFrameBucketSizeYear}
)

// TimeFrame represents the half-open window [From, To) in UTC.
type TimeFrame struct {
	From       time.Time
	To         time.Time
	BucketSize TimeFrameBucketSize
}

// NewTimeFrame builds a validated window with an explicit bucket size.
func NewTimeFrame(from, to time.Time, bucketSize TimeFrameBucketSize) (*TimeFrame, error) {
	if from.After(to) {
		return nil, fmt.Errorf("fromTime must be before toTime")
	}
	return &TimeFrame{
		From:       from.UTC(),
		To:         to.UTC(),
		BucketSize: bucketSize,
	}, nil
}

// NewTimeFrameForDays returns the window covering the last daysBack days up
// to now, bucketed appropriately for its length.
func NewTimeFrameForDays(daysBack int) *TimeFrame {
	if daysBack < 1 {
		daysBack = 1
	}
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -daysBack)
	size := GetAppropriateTimeFrameSize(from, now)
	return &TimeFrame{From: from, To: now, BucketSize: size.BucketSize}
}

// Previous returns the window of equal length immediately preceding this one.
func (tf *TimeFrame) Previous() *TimeFrame {
	d := tf.Duration()
	return &TimeFrame{From: tf.From.Add(-d), To: tf.From, BucketSize: tf.BucketSize}
}

func GetAppropriateTimeFrameSize(fromTime, toTime time.Time) TimeFrameSize {
	days := toTime.Sub(fromTime).Hours() / 24

	switch {
	case days >= 5*365:
		return YearlyTimeFrame
	case days >= 3*30:
		return MonthlyTimeFrame
	case days >= 2:
		return DailyTimeFrame
	default:
		return HourlyTimeFrame
	}
}

func (tf *TimeFrame) Duration() time.Duration {
	return tf.To.Sub(tf.From)
}

func (tf *TimeFrame) Validate() error {
	if tf.From.After(tf.To) {
		return fmt.Errorf("fromTime must be before toTime")
	}
	return nil
}

// GetSQLiteGroupByExpression returns the SQLite expression used to group a
// datetime column into this frame's buckets.
func (tf *TimeFrame) GetSQLiteGroupByExpression(column string) (string, error) {
	switch tf.BucketSize {
	case TimeFrameBucketSizeHour:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H', %s)", column), nil
	case TimeFrameBucketSizeDay:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column), nil
	case TimeFrameBucketSizeWeek:
		return fmt.Sprintf("date(%s, 'start of day', '-' || ((strftime('%%w', %s) + 6) %% 7) || ' days')", column, column), nil
	case TimeFrameBucketSizeMonth:
		return fmt.Sprintf("strftime('%%Y-%%m', %s)", column), nil
	case TimeFrameBucketSizeYear:
		return fmt.Sprintf("strftime('%%Y', %s)", column), nil
	default:
		return "", fmt.Errorf("unsupported time frame bucket size: %v", tf.BucketSize)
	}
}

// DatePointsOfReference pairs a bucket's SQLite grouping key with the label
// handed to API consumers.
type DatePointsOfReference struct {
	SQLiteBucketTimeFormat string
	UserFacingTimeFormat   string
}

// GenerateDateTimePointsReference enumerates every bucket of the window so
// empty buckets appear as explicit zero points.
func (tf *TimeFrame) GenerateDateTimePointsReference() []DatePointsOfReference {
	datePoints := []DatePointsOfReference{}

	currentTime := truncateToBucket(tf.From, tf.BucketSize)
	endTime := tf.To

	// Guard against runaway windows.
	maxPoints := 1000

	for pointCount := 0; pointCount < maxPoints; pointCount++ {
		if !currentTime.Before(endTime) {
			break
		}

		var sqliteBucketFormat string
		switch tf.BucketSize {
		case TimeFrameBucketSizeYear:
			sqliteBucketFormat = currentTime.Format("2006")
		case TimeFrameBucketSizeMonth:
			sqliteBucketFormat = currentTime.Format("2006-01")
		case TimeFrameBucketSizeWeek, TimeFrameBucketSizeDay:
			sqliteBucketFormat = currentTime.Format("2006-01-02")
		case TimeFrameBucketSizeHour:
			sqliteBucketFormat = currentTime.Format("2006-01-02 15")
		}

		datePoints = append(datePoints, DatePointsOfReference{
			SQLiteBucketTimeFormat: sqliteBucketFormat,
			UserFacingTimeFormat:   currentTime.Format(time.RFC3339),
		})

		switch tf.BucketSize {
		case TimeFrameBucketSizeYear:
			currentTime = currentTime.AddDate(1, 0, 0)
		case TimeFrameBucketSizeMonth:
			currentTime = currentTime.AddDate(0, 1, 0)
		case TimeFrameBucketSizeWeek:
			currentTime = currentTime.AddDate(0, 0, 7)
		case TimeFrameBucketSizeDay:
			currentTime = currentTime.AddDate(0, 0, 1)
		case TimeFrameBucketSizeHour:
			currentTime = currentTime.Add(time.Hour)
		}
	}

	return datePoints
}

// BuildTimeSeriesPoints merges grouped database results onto the full bucket
// grid of the window, zero-filling buckets with no rows.
func (tf *TimeFrame) BuildTimeSeriesPoints(groupedResults []DateStat) []DateStat {
	dateLabels := tf.GenerateDateTimePointsReference()
	results := make([]DateStat, len(dateLabels))

	resultsMap := make(map[string]int, len(groupedResults))
	for _, result := range groupedResults {
		normalizedKey := tf.normalizeDBDateFormat(result.Date)
		resultsMap[normalizedKey] += result.Count
	}

	for i, datePoint := range dateLabels {
		normalizedKey := tf.normalizeDBDateFormat(datePoint.SQLiteBucketTimeFormat)
		results[i] = DateStat{
			Date:  datePoint.UserFacingTimeFormat,
			Count: resultsMap[normalizedKey],
		}
	}

	return results
}

// normalizeDBDateFormat standardizes date formats for consistent lookups
func (tf *TimeFrame) normalizeDBDateFormat(dateStr string) string {
	switch tf.BucketSize {
	case TimeFrameBucketSizeHour:
		if len(dateStr) >= 13 {
			return dateStr[:13] // YYYY-MM-DD HH
		}
	case TimeFrameBucketSizeDay, TimeFrameBucketSizeWeek:
		if len(dateStr) >= 10 {
			return dateStr[:10]
		}
	case TimeFrameBucketSizeMonth:
		if len(dateStr) >= 7 {
			return dateStr[:7]
		}
	case TimeFrameBucketSizeYear:
		if len(dateStr) >= 4 {
			return dateStr[:4]
		}
	}
	return dateStr
}

func truncateToBucket(t time.Time, bucketSize TimeFrameBucketSize) time.Time {
	utc := t.UTC()
	year, month, day := utc.Year(), utc.Month(), utc.Day()

	switch bucketSize {
	case TimeFrameBucketSizeYear:
		return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	case TimeFrameBucketSizeMonth:
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	case TimeFrameBucketSizeWeek:
		weekday := int(utc.Weekday())
		if weekday == 0 { // Sunday
			weekday = 7
		}
		daysToSubtract := weekday - 1
		return time.Date(year, month, day-daysToSubtract, 0, 0, 0, 0, time.UTC)
	case TimeFrameBucketSizeDay:
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	case TimeFrameBucketSizeHour:
		return time.Date(year, month, day, utc.Hour(), 0, 0, 0, time.UTC)
	default:
		return utc
	}
}
