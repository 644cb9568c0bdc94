package timeframe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beaconly/internal/timeframe"
)

func TestNewTimeFrameRejectsInvertedWindow(t *testing.T) {
	now := time.Now().UTC()
	_, err := timeframe.NewTimeFrame(now, now.Add(-time.Hour), timeframe.TimeFrameBucketSizeHour)
	assert.Error(t, err)
}

func TestNewTimeFrameNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	from := time.Date(2026, 3, 1, 10, 0, 0, 0, loc)
	to := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)

	tf, err := timeframe.NewTimeFrame(from, to, timeframe.TimeFrameBucketSizeHour)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, tf.From.Location())
	assert.Equal(t, 8, tf.From.Hour())
}

func TestNewTimeFrameForDaysClampsToOneDay(t *testing.T) {
	tf := timeframe.NewTimeFrameForDays(0)
	assert.InDelta(t, 24*time.Hour, tf.Duration(), float64(time.Second))
}

func TestGetAppropriateTimeFrameSize(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		from     time.Time
		expected timeframe.TimeFrameBucketSize
	}{
		{"one day is hourly", now.AddDate(0, 0, -1), timeframe.TimeFrameBucketSizeHour},
		{"just under two days is hourly", now.Add(-47 * time.Hour), timeframe.TimeFrameBucketSizeHour},
		{"two days is daily", now.AddDate(0, 0, -2), timeframe.TimeFrameBucketSizeDay},
		{"thirty days is daily", now.AddDate(0, 0, -30), timeframe.TimeFrameBucketSizeDay},
		{"ninety days is monthly", now.AddDate(0, 0, -90), timeframe.TimeFrameBucketSizeMonth},
		{"one year is monthly", now.AddDate(-1, 0, 0), timeframe.TimeFrameBucketSizeMonth},
		{"five years is yearly", now.AddDate(-5, 0, -3), timeframe.TimeFrameBucketSizeYear},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			size := timeframe.GetAppropriateTimeFrameSize(tc.from, now)
			assert.Equal(t, tc.expected, size.BucketSize)
		})
	}
}

func TestPreviousIsAdjacentAndEqualLength(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)
	tf, err := timeframe.NewTimeFrame(from, to, timeframe.TimeFrameBucketSizeDay)
	require.NoError(t, err)

	prev := tf.Previous()
	assert.Equal(t, tf.From, prev.To)
	assert.Equal(t, tf.Duration(), prev.Duration())
	assert.Equal(t, tf.BucketSize, prev.BucketSize)
}

func TestGetSQLiteGroupByExpression(t *testing.T) {
	tf := &timeframe.TimeFrame{BucketSize: timeframe.TimeFrameBucketSizeHour}
	expr, err := tf.GetSQLiteGroupByExpression("timestamp")
	require.NoError(t, err)
	assert.Equal(t, "strftime('%Y-%m-%d %H', timestamp)", expr)

	tf.BucketSize = timeframe.TimeFrameBucketSizeDay
	expr, err = tf.GetSQLiteGroupByExpression("hour")
	require.NoError(t, err)
	assert.Equal(t, "strftime('%Y-%m-%d', hour)", expr)

	tf.BucketSize = "fortnight"
	_, err = tf.GetSQLiteGroupByExpression("timestamp")
	assert.Error(t, err)
}

func TestGenerateDateTimePointsReferenceHourly(t *testing.T) {
	from := time.Date(2026, 8, 30, 10, 25, 0, 0, time.UTC)
	to := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)
	tf, err := timeframe.NewTimeFrame(from, to, timeframe.TimeFrameBucketSizeHour)
	require.NoError(t, err)

	points := tf.GenerateDateTimePointsReference()
	// 10:00 through 13:00; From truncates down to its bucket start.
	require.Len(t, points, 4)
	assert.Equal(t, "2026-08-30 10", points[0].SQLiteBucketTimeFormat)
	assert.Equal(t, "2026-08-30 13", points[3].SQLiteBucketTimeFormat)
}

func TestGenerateDateTimePointsReferenceDaily(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)
	tf, err := timeframe.NewTimeFrame(from, to, timeframe.TimeFrameBucketSizeDay)
	require.NoError(t, err)

	points := tf.GenerateDateTimePointsReference()
	require.Len(t, points, 7)
	assert.Equal(t, "2026-08-01", points[0].SQLiteBucketTimeFormat)
	assert.Equal(t, "2026-08-07", points[6].SQLiteBucketTimeFormat)
}

func TestBuildTimeSeriesPointsZeroFills(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)
	tf, err := timeframe.NewTimeFrame(from, to, timeframe.TimeFrameBucketSizeDay)
	require.NoError(t, err)

	series := tf.BuildTimeSeriesPoints([]timeframe.DateStat{
		{Date: "2026-08-02", Count: 5},
	})

	require.Len(t, series, 3)
	assert.Equal(t, 0, series[0].Count)
	assert.Equal(t, 5, series[1].Count)
	assert.Equal(t, 0, series[2].Count)
	assert.Equal(t, "2026-08-02T00:00:00Z", series[1].Date)
}

func TestBuildTimeSeriesPointsAccumulatesDuplicateBuckets(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	tf, err := timeframe.NewTimeFrame(from, to, timeframe.TimeFrameBucketSizeDay)
	require.NoError(t, err)

	// Raw rows may carry full timestamps; both collapse into the same day.
	series := tf.BuildTimeSeriesPoints([]timeframe.DateStat{
		{Date: "2026-08-01 10:00:00", Count: 2},
		{Date: "2026-08-01 18:30:00", Count: 3},
	})

	require.Len(t, series, 1)
	assert.Equal(t, 5, series[0].Count)
}

func TestBuildTimeSeriesPointsCapsRunawayWindows(t *testing.T) {
	from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tf, err := timeframe.NewTimeFrame(from, to, timeframe.TimeFrameBucketSizeHour)
	require.NoError(t, err)

	series := tf.BuildTimeSeriesPoints(nil)
	assert.Len(t, series, 1000)
}
