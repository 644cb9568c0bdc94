package v1_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beaconly/internal/events"
	"beaconly/internal/testsupport"
	"beaconly/internal/websites"
)

const testUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", testUserAgent)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func eventBody(trackingCode, visitorID, sessionID string) map[string]interface{} {
	return map[string]interface{}{
		"trackingCode": trackingCode,
		"eventType":    events.EventTypePageView,
		"url":          "https://example.com/",
		"sessionId":    sessionID,
		"visitorId":    visitorID,
	}
}

func TestCreateEventEndpoint(t *testing.T) {
	dbManager, _, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	resp := postJSON(t, app, "/api/v1/events", eventBody(website.TrackingCode, "visitor-1", "session-1"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])

	event, ok := body["event"].(map[string]interface{})
	require.True(t, ok)
	assert.NotZero(t, event["id"])
	assert.Equal(t, events.EventTypePageView, event["eventType"])
	assert.NotEmpty(t, event["timestamp"])
}

func TestCreateEventValidation(t *testing.T) {
	dbManager, _, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	payload := eventBody(website.TrackingCode, "visitor-1", "session-1")
	payload["url"] = "/relative/path"

	resp := postJSON(t, app, "/api/v1/events", payload)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, events.ErrCodeValidation, body["error"])
}

func TestCreateEventUnknownTrackingCode(t *testing.T) {
	dbManager, _, _ := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	resp := postJSON(t, app, "/api/v1/events", eventBody("bl-0000000000000000", "visitor-1", "session-1"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, events.ErrCodeNotFound, body["error"])
}

func TestCreateEventBotTrafficAccepted(t *testing.T) {
	dbManager, _, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()
	app := testsupport.CreateMinimalTestApp(t, db)

	payload, err := json.Marshal(eventBody(website.TrackingCode, "visitor-1", "session-1"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&events.Event{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCreateEventBatchEndpoint(t *testing.T) {
	dbManager, _, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	items := make([]map[string]interface{}, 3)
	for i := range items {
		items[i] = eventBody(website.TrackingCode, fmt.Sprintf("visitor-%d", i), fmt.Sprintf("session-%d", i))
	}

	resp := postJSON(t, app, "/api/v1/events/batch", map[string]interface{}{"events": items})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["eventsCreated"])
	assert.Len(t, body["events"], 3)
	assert.NotContains(t, body, "errors")
}

func TestCreateEventBatchPartialFailure(t *testing.T) {
	dbManager, _, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	good := eventBody(website.TrackingCode, "visitor-1", "session-1")
	bad := eventBody(website.TrackingCode, "visitor-2", "session-2")
	bad["url"] = "not-a-url"

	resp := postJSON(t, app, "/api/v1/events/batch", map[string]interface{}{
		"events": []map[string]interface{}{good, bad},
	})
	assert.Equal(t, http.StatusMultiStatus, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(1), body["eventsCreated"])
	assert.Equal(t, "Some events could not be recorded", body["message"])

	errorsList, ok := body["errors"].([]interface{})
	require.True(t, ok)
	require.Len(t, errorsList, 1)
	itemError := errorsList[0].(map[string]interface{})
	assert.Equal(t, float64(1), itemError["index"])
	assert.Equal(t, events.ErrCodeValidation, itemError["error"])
}

func TestCreateEventBatchRejectsEmptyEnvelope(t *testing.T) {
	dbManager, _, _ := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	resp := postJSON(t, app, "/api/v1/events/batch", map[string]interface{}{
		"events": []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBeaconEndpointAlwaysAccepts(t *testing.T) {
	dbManager, _, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()
	app := testsupport.CreateMinimalTestApp(t, db)

	send := func(origin string, body []byte) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/events/beacon", bytes.NewReader(body))
		req.Header.Set("Content-Type", "text/plain")
		req.Header.Set("User-Agent", testUserAgent)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	payload, err := json.Marshal(eventBody(website.TrackingCode, "visitor-1", "session-1"))
	require.NoError(t, err)

	// Registered origin: accepted and stored.
	resp := send("https://www.example.com", payload)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&events.Event{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Unregistered origin: still 202 but dropped.
	resp = send("https://evil.test", payload)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NoError(t, db.Model(&events.Event{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Garbage body: still 202.
	resp = send("https://www.example.com", []byte("not json"))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestBeaconEndpointBatchEnvelope(t *testing.T) {
	dbManager, _, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()
	app := testsupport.CreateMinimalTestApp(t, db)

	envelope := map[string]interface{}{
		"events": []map[string]interface{}{
			eventBody(website.TrackingCode, "visitor-1", "session-1"),
			eventBody(website.TrackingCode, "visitor-2", "session-2"),
		},
	}
	payload, err := json.Marshal(envelope)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/beacon", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("User-Agent", testUserAgent)
	req.Header.Set("Origin", "https://example.com")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&events.Event{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestListEventsEndpoint(t *testing.T) {
	dbManager, logger, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()
	app := testsupport.CreateMinimalTestApp(t, db)

	now := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		input := testsupport.NewTestEventInput(website, "visitor-1", "session-1", now.Add(time.Duration(i)*time.Minute))
		input.URL = fmt.Sprintf("https://example.com/page-%d", i)
		testsupport.RecordTestEvent(t, db, logger, input)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?trackingCode="+website.TrackingCode+"&limit=2", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["total"])

	listed, ok := body["events"].([]interface{})
	require.True(t, ok)
	require.Len(t, listed, 2)
	newest := listed[0].(map[string]interface{})
	assert.Equal(t, "https://example.com/page-2", newest["pageUrl"])
	assert.NotEmpty(t, newest["visitorAlias"])
}

func TestListEventsRequiresTrackingCode(t *testing.T) {
	dbManager, _, _ := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDashboardEndpointsRequireWebsiteID(t *testing.T) {
	dbManager, _, _ := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	paths := []string{
		"/api/v1/dashboard/overview",
		"/api/v1/dashboard/metrics",
		"/api/v1/dashboard/pageviews",
		"/api/v1/dashboard/top-pages",
		"/api/v1/dashboard/referrers",
		"/api/v1/dashboard/devices",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestDashboardMetricsEndpoint(t *testing.T) {
	dbManager, logger, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()
	app := testsupport.CreateMinimalTestApp(t, db)

	now := time.Now().UTC().Add(-time.Hour)
	testsupport.RecordTestEvent(t, db, logger,
		testsupport.NewTestEventInput(website, "visitor-1", "session-1", now))

	path := fmt.Sprintf("/api/v1/dashboard/metrics?website_id=%d&days=7", website.ID)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "7 days", body["period"])

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["pageViews"])
	assert.Equal(t, float64(1), data["uniqueVisitors"])
}

func TestDashboardMetricsUnknownWebsite(t *testing.T) {
	dbManager, _, _ := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/metrics?website_id=9999", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDashboardOverviewEndpoint(t *testing.T) {
	dbManager, logger, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()
	app := testsupport.CreateMinimalTestApp(t, db)

	now := time.Now().UTC().Add(-time.Hour)
	testsupport.RecordTestEvent(t, db, logger,
		testsupport.NewTestEventInput(website, "visitor-1", "session-1", now))

	path := fmt.Sprintf("/api/v1/dashboard/overview?website_id=%d", website.ID)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	for _, key := range []string{"metrics", "pageViews", "topPages", "referrers", "devices"} {
		assert.Contains(t, data, key)
	}
}

func TestSDKEndpoint(t *testing.T) {
	dbManager, _, _ := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sdk.js", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))

	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	script, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(script), "/api/v1/events/beacon")

	// Conditional request with the same ETag short-circuits.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sdk.js", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestListWebsitesEndpoint(t *testing.T) {
	dbManager, logger, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()
	app := testsupport.CreateMinimalTestApp(t, db)

	now := time.Now().UTC().Add(-time.Hour)
	testsupport.RecordTestEvent(t, db, logger,
		testsupport.NewTestEventInput(website, "visitor-1", "session-1", now))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/websites", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])

	sites, ok := body["websites"].([]interface{})
	require.True(t, ok)
	require.Len(t, sites, 1)
	site := sites[0].(map[string]interface{})
	assert.Equal(t, "example.com", site["domain"])
	assert.Equal(t, website.TrackingCode, site["tracking_code"])
	assert.Equal(t, float64(1), site["event_count"])
}

func TestDeleteWebsiteEndpoint(t *testing.T) {
	dbManager, _, website := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	db := dbManager.GetConnection()
	app := testsupport.CreateMinimalTestApp(t, db)

	path := fmt.Sprintf("/api/v1/websites/%d", website.ID)
	req := httptest.NewRequest(http.MethodDelete, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&websites.Website{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	// Deleting again reports not found.
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, path, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	dbManager, _, _ := testsupport.SetupTestDBManagerWithWebsite(t, "example.com")
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	req := httptest.NewRequest(http.MethodGet, "/_health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
}
