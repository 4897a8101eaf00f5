// Package v1_test contains tests for the API v1 handlers
package v1_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"blogstats/internal/config"
	"blogstats/internal/events"
	"blogstats/internal/settings"
	"blogstats/internal/testsupport"
	"blogstats/internal/visitors"
)

const trackPath = "/api/analytics/track"

func trackRequest(t *testing.T, body []byte, headers map[string]string) *http.Request {
	t.Helper()

	req := httptest.NewRequest("POST", trackPath, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", testsupport.ChromeDesktopUA)
	req.Header.Set("X-Forwarded-For", "203.0.113.10")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func trackPayload(t *testing.T, payload map[string]any) []byte {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded), "body: %s", string(body))
	return decoded
}

func visitorCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == visitors.CookieName {
			return c
		}
	}
	return nil
}

func testSalt() string {
	return config.GetConfig().IPHashSalt
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(model).Count(&count).Error)
	return count
}

func TestTrackHandler(t *testing.T) {
	t.Run("records a page view and issues a visitor cookie", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanTables(db, "page_views", "visitor_sessions")

		app := testsupport.CreateMinimalTestApp(t, db)
		post := testsupport.CreateTestPost(t, db, "Hello", "hello", true)

		body := trackPayload(t, map[string]any{"pagePath": "/blog/hello?utm=x", "postId": post.ID})
		resp, err := app.Test(trackRequest(t, body, map[string]string{
			"Referer":      "https://news.ycombinator.com/item?id=1",
			"CF-IPCountry": "de",
		}), 30000)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, decodeBody(t, resp)["success"])

		cookie := visitorCookie(resp)
		require.NotNil(t, cookie, "new visitors get a cookie")
		assert.True(t, visitors.IsWellFormed(cookie.Value))
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, "/", cookie.Path)
		assert.Equal(t, 365*24*60*60, cookie.MaxAge)
		assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

		var stored events.PageView
		require.NoError(t, db.First(&stored).Error)
		assert.Equal(t, "/blog/hello", stored.PagePath)
		require.NotNil(t, stored.PostID)
		assert.Equal(t, post.ID, *stored.PostID)
		assert.Equal(t, cookie.Value, stored.VisitorID)
		assert.Equal(t, "https://news.ycombinator.com/item?id=1", stored.Referrer)
		assert.Equal(t, events.DeviceDesktop, stored.DeviceType)
		assert.Equal(t, "Chrome", stored.Browser)
		assert.Equal(t, "Windows", stored.OS)
		assert.Equal(t, "DE", stored.Country)
		assert.Equal(t, visitors.HashIP("203.0.113.10", testSalt()), stored.IPHash)
		assert.NotContains(t, stored.IPHash, "203.0.113.10")

		assert.Equal(t, int64(1), countRows(t, db, &events.VisitorSession{}))
	})

	t.Run("reuses a well-formed visitor cookie", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanTables(db, "page_views", "visitor_sessions")

		app := testsupport.CreateMinimalTestApp(t, db)
		existing := "0b6f3c1e-8a4d-4c39-9d3e-6f2a1b7c8d90"

		for i := 0; i < 2; i++ {
			req := trackRequest(t, trackPayload(t, map[string]any{"pagePath": "/about"}), nil)
			req.AddCookie(&http.Cookie{Name: visitors.CookieName, Value: existing})

			resp, err := app.Test(req, 30000)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Nil(t, visitorCookie(resp), "known visitors are not re-issued a cookie")
		}

		assert.Equal(t, int64(2), countRows(t, db, &events.PageView{}))
		assert.Equal(t, int64(1), countRows(t, db, &events.VisitorSession{}))

		var session events.VisitorSession
		require.NoError(t, db.First(&session).Error)
		assert.Equal(t, existing, session.VisitorID)
	})

	t.Run("replaces a malformed cookie with a fresh visitor id", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanTables(db, "page_views", "visitor_sessions")

		app := testsupport.CreateMinimalTestApp(t, db)

		req := trackRequest(t, trackPayload(t, map[string]any{"pagePath": "/"}), nil)
		req.AddCookie(&http.Cookie{Name: visitors.CookieName, Value: "not-a-uuid"})

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		cookie := visitorCookie(resp)
		require.NotNil(t, cookie)
		assert.NotEqual(t, "not-a-uuid", cookie.Value)
		assert.True(t, visitors.IsWellFormed(cookie.Value))
	})

	t.Run("acknowledges unusable payloads without storing them", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanTables(db, "page_views", "visitor_sessions")

		app := testsupport.CreateMinimalTestApp(t, db)

		bodies := map[string][]byte{
			"malformed json":   []byte(`{"pagePath":`),
			"missing path":     trackPayload(t, map[string]any{"postId": 3}),
			"blank path":       trackPayload(t, map[string]any{"pagePath": "   "}),
			"wrong field type": []byte(`{"pagePath": 42}`),
		}

		for name, body := range bodies {
			resp, err := app.Test(trackRequest(t, body, nil), 30000)
			require.NoError(t, err, name)
			assert.Equal(t, http.StatusOK, resp.StatusCode, name)
			assert.Equal(t, true, decodeBody(t, resp)["success"], name)
			assert.Nil(t, visitorCookie(resp), name)
		}

		assert.Equal(t, int64(0), countRows(t, db, &events.PageView{}))
		assert.Equal(t, int64(0), countRows(t, db, &events.VisitorSession{}))
	})

	t.Run("skips excluded IPs", func(t *testing.T) {
		dbManager, logger := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanTables(db, "page_views", "visitor_sessions")
		require.NoError(t, settings.UpdateSetting(db, logger, settings.KeyExcludedIPs, "198.51.100.1, 203.0.113.10"))
		t.Cleanup(func() {
			require.NoError(t, settings.UpdateSetting(db, logger, settings.KeyExcludedIPs, ""))
		})

		app := testsupport.CreateMinimalTestApp(t, db)

		resp, err := app.Test(trackRequest(t, trackPayload(t, map[string]any{"pagePath": "/"}), nil), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(0), countRows(t, db, &events.PageView{}))

		other := trackRequest(t, trackPayload(t, map[string]any{"pagePath": "/"}), map[string]string{
			"X-Forwarded-For": "192.0.2.44",
		})
		resp, err = app.Test(other, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(1), countRows(t, db, &events.PageView{}))
	})

	t.Run("falls back to accept-language for the country", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanTables(db, "page_views", "visitor_sessions")

		app := testsupport.CreateMinimalTestApp(t, db)

		resp, err := app.Test(trackRequest(t, trackPayload(t, map[string]any{"pagePath": "/"}), map[string]string{
			"User-Agent":      testsupport.SafariIPhoneUA,
			"CF-IPCountry":    "XX",
			"Accept-Language": "fr-CA,fr;q=0.9,en;q=0.8",
		}), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var stored events.PageView
		require.NoError(t, db.First(&stored).Error)
		assert.Equal(t, "CA", stored.Country)
		assert.Equal(t, events.DeviceMobile, stored.DeviceType)
		assert.Equal(t, "Safari", stored.Browser)
		assert.Equal(t, "iOS", stored.OS)
	})

	t.Run("answers CORS preflight", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

		req := httptest.NewRequest("OPTIONS", trackPath, nil)
		req.Header.Set("Origin", "https://myblog.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Sec-Fetch-Site", "cross-site")

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

func TestTrackHandlerStoreFailure(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanTables(db, "page_views", "visitor_sessions")

	app := testsupport.CreateMinimalTestApp(t, db)

	require.NoError(t, db.Exec("DROP TABLE visitor_sessions").Error)

	resp, err := app.Test(trackRequest(t, trackPayload(t, map[string]any{"pagePath": "/blog/hello"}), nil), 30000)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to track page view", decodeBody(t, resp)["error"])
	assert.Nil(t, visitorCookie(resp), "no cookie when nothing was stored")
	assert.Equal(t, int64(0), countRows(t, db, &events.PageView{}), "the page view is rolled back with the session")
}
