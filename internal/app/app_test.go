package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtodash/internal/config"
	"qtodash/internal/services"
	"qtodash/internal/shared/testutil"
	ws "qtodash/internal/websocket"
	"qtodash/web"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *Application {
	t.Helper()
	cfg := config.Default()
	cfg.Telemetry.MetricExporter = "none"
	cfg.Security.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	logger, _ := testutil.NewTestLogger(t)
	app, err := New(cfg, web.FS, logger)
	require.NoError(t, err)

	app.WebSocketHub.Start()
	t.Cleanup(app.WebSocketHub.Stop)
	return app
}

func newSessionClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func upload(t *testing.T, client *http.Client, baseURL, fileName, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := client.Post(baseURL+"/api/dataset", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Dataset.TopN = 0
	logger, _ := testutil.NewTestLogger(t)

	_, err := New(cfg, web.FS, logger)
	assert.ErrorContains(t, err, "top_n")
}

func TestNew_MissingSheetsCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.MetricExporter = "none"
	cfg.Sheets.CredentialsFile = t.TempDir() + "/missing.json"
	logger, _ := testutil.NewTestLogger(t)

	_, err := New(cfg, web.FS, logger)
	assert.Error(t, err)
}

func TestApplication_UploadAndReadInSession(t *testing.T) {
	app := newTestApp(t, nil)
	server := httptest.NewServer(app.Router)
	t.Cleanup(server.Close)

	alice := newSessionClient(t)
	resp := upload(t, alice, server.URL, "quantities.csv", testutil.QuantityCSV)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := alice.Get(server.URL + "/api/dataset/totals")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Volume float64 `json:"total_volume"`
			Count  int     `json:"total_count"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, 91.0, body.Data.Volume)
	assert.Equal(t, 5, body.Data.Count)

	// another browser session has no dataset
	bob := newSessionClient(t)
	resp, err = bob.Get(server.URL + "/api/dataset/totals")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	assert.Equal(t, 1, app.DatasetService.ActiveSessions())
}

func TestApplication_MissingColumnUpload(t *testing.T) {
	app := newTestApp(t, nil)
	server := httptest.NewServer(app.Router)
	t.Cleanup(server.Close)

	resp := upload(t, newSessionClient(t), server.URL, "areas.csv", testutil.MissingVolumeCSV)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var problem map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.Contains(t, problem["detail"], "Volume")
}

func TestApplication_Routes(t *testing.T) {
	app := newTestApp(t, nil)

	tests := []struct {
		method     string
		path       string
		wantStatus int
		wantType   string
	}{
		{http.MethodGet, "/", http.StatusOK, "text/html; charset=utf-8"},
		{http.MethodGet, "/static/dashboard.css", http.StatusOK, "text/css; charset=utf-8"},
		{http.MethodGet, "/api/health", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/health/live", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/version", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/dataset", http.StatusNotFound, "application/problem+json"},
		{http.MethodGet, "/api/nope", http.StatusNotFound, "application/problem+json"},
		{http.MethodPut, "/", http.StatusMethodNotAllowed, "application/problem+json"},
		{http.MethodGet, "/metrics", http.StatusServiceUnavailable, "application/problem+json"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.Router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), tt.wantType),
				"content type %q", rec.Header().Get("Content-Type"))
			assert.NotEmpty(t, rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestApplication_SessionCookie(t *testing.T) {
	app := newTestApp(t, nil)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, config.SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, int(app.Config.Dataset.SessionTTL.Seconds()), cookies[0].MaxAge)

	// a valid cookie is kept
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Result().Cookies())
}

func TestApplication_RateLimit(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.Security.RateLimit.Enabled = true
		cfg.Security.RateLimit.RPS = 0.001
		cfg.Security.RateLimit.Burst = 1
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/live", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, app.RateLimiter.Limiters().Size())
}

func TestApplication_WebSocketReceivesSessionEvents(t *testing.T) {
	app := newTestApp(t, nil)
	server := httptest.NewServer(app.Router)
	t.Cleanup(server.Close)

	client := newSessionClient(t)
	// first request establishes the session cookie
	resp, err := client.Get(server.URL + "/api/health/live")
	require.NoError(t, err)
	resp.Body.Close()

	dialer := websocket.Dialer{Jar: client.Jar, HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+config.WebSocketEndpoint, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	read := func() ws.Message {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg ws.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}
	require.Equal(t, ws.TypeConnection, read().Type)
	require.Eventually(t, func() bool { return app.WebSocketHub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	resp = upload(t, client, server.URL, "quantities.csv", testutil.QuantityCSV)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, services.EventDatasetReplaced, read().Type)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/dataset", nil)
	require.NoError(t, err)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, services.EventDatasetCleared, read().Type)
}

func TestApplication_StartStop(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = port
	cfg.Telemetry.MetricExporter = "none"
	logger, _ := testutil.NewTestLogger(t)
	app, err := New(cfg, web.FS, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Start(ctx, cancel))
	assert.True(t, app.WebSocketHub.IsRunning())

	resp, err := http.Get("http://" + cfg.Server.Address() + "/api/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, app.Stop(context.Background()))
	assert.False(t, app.WebSocketHub.IsRunning())
	assert.NoError(t, ctx.Err())
}
