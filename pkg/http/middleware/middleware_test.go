package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applogger "AOWI/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func serve(e *echo.Echo, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCORSPreflight(t *testing.T) {
	e := echo.New()
	e.Use(CORS(CORSConfig{AllowOrigins: []string{"https://desk.example"}, AllowMethods: []string{http.MethodGet}, MaxAge: 600}))
	e.GET("/api/status", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	rec := serve(e, http.MethodOptions, "/api/status", map[string]string{
		echo.HeaderOrigin:                     "https://desk.example",
		echo.HeaderAccessControlRequestMethod: http.MethodGet,
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowMethods); got != "GET" {
		t.Fatalf("allow methods = %q", got)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlMaxAge); got != "600" {
		t.Fatalf("max age = %q", got)
	}

	rec = serve(e, http.MethodGet, "/api/status", map[string]string{echo.HeaderOrigin: "https://evil.example"})
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "" {
		t.Fatalf("foreign origin should pass without CORS headers: %d %v", rec.Code, rec.Header())
	}
}

func TestCORSWildcard(t *testing.T) {
	e := echo.New()
	e.Use(CORS(CORSConfig{AllowOrigins: []string{"*"}}))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := serve(e, http.MethodGet, "/", map[string]string{echo.HeaderOrigin: "http://localhost:3000"})
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "http://localhost:3000" {
		t.Fatalf("allow origin = %q", got)
	}
	rec = serve(e, http.MethodGet, "/", nil)
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Fatalf("allow origin without Origin header = %q", got)
	}
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	l, _ := applogger.NewWithWriter(&buf, "debug")
	e := echo.New()
	e.Use(Recover(l))
	e.GET("/boom", func(c echo.Context) error { panic("strategy table corrupt") })

	rec := serve(e, http.MethodGet, "/boom", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "strategy table corrupt") || !strings.Contains(buf.String(), `"route":"/boom"`) {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}

func TestMetricsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := echo.New()
	e.Use(Metrics(applogger.Nop(), reg, 0))
	e.Use(RequestLogging(applogger.Nop()))
	e.GET("/api/outcomes", func(c echo.Context) error { return c.String(http.StatusOK, "[]") })
	e.GET("/fail", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway) })

	serve(e, http.MethodGet, "/api/outcomes?limit=5", nil)
	serve(e, http.MethodGet, "/api/outcomes?limit=6", nil)
	rec := serve(e, http.MethodGet, "/fail", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}

	m := newHTTPMetrics(reg)
	if got := testutil.ToFloat64(m.requests.WithLabelValues("/api/outcomes", "GET", "200")); got != 2 {
		t.Fatalf("requests for route = %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("/fail", "GET", "502")); got != 1 {
		t.Fatalf("requests for failing route = %v", got)
	}
	if got := testutil.ToFloat64(m.inFlight.WithLabelValues("/api/outcomes", "GET")); got != 0 {
		t.Fatalf("in flight = %v", got)
	}
}

func TestStatusClass(t *testing.T) {
	for code, want := range map[int]string{101: "1xx", 204: "2xx", 304: "3xx", 429: "4xx", 503: "5xx", 0: "5xx"} {
		if got := statusClass(code); got != want {
			t.Fatalf("statusClass(%d) = %s, want %s", code, got, want)
		}
	}
}
