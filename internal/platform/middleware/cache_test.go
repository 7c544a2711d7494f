package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func jsonHandler(body string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(body))
	}
}

func TestCacheControl_SetsHeaders(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/lawyers/1/availability", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := CacheControl(DefaultCacheConfig())(jsonHandler(`{"slots":[]}`))
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"slots":[]}` {
		t.Errorf("body not flushed: %q", rec.Body.String())
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=60" {
		t.Errorf("unexpected Cache-Control %q", got)
	}
	if got := rec.Header().Get("Vary"); got != "Accept" {
		t.Errorf("unexpected Vary %q", got)
	}
	if etag := rec.Header().Get("ETag"); !strings.HasPrefix(etag, `W/"`) {
		t.Errorf("expected weak ETag, got %q", etag)
	}
}

func TestCacheControl_304OnMatch(t *testing.T) {
	e := echo.New()
	h := CacheControl(DefaultCacheConfig())(jsonHandler(`{"slots":["09:00"]}`))

	rec := httptest.NewRecorder()
	if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	etag := rec.Header().Get("ETag")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body on 304, got %q", rec.Body.String())
	}
}

func TestCacheControl_200OnMismatch(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("If-None-Match", `W/"stale"`)
	rec := httptest.NewRecorder()

	h := CacheControl(DefaultCacheConfig())(jsonHandler(`{"slots":["10:00"]}`))
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestCacheControl_SkipsPOST(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	h := CacheControl(DefaultCacheConfig())(func(c echo.Context) error {
		return c.JSON(http.StatusCreated, map[string]string{"status": "pending"})
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get("ETag") != "" || rec.Header().Get("Cache-Control") != "" {
		t.Errorf("POST responses must not get cache headers: %v", rec.Header())
	}
}

func TestCacheControl_SkipsErrorResponses(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	h := CacheControl(DefaultCacheConfig())(func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec.Header().Get("ETag") != "" {
		t.Error("error responses must not get an ETag")
	}
}

func TestCacheControl_HandlerErrorPassesThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	want := echo.NewHTTPError(http.StatusBadRequest, "invalid date")

	err := CacheControl(DefaultCacheConfig())(func(c echo.Context) error { return want })(c)
	if err != want {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestCacheControl_Private(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	h := CacheControl(CacheConfig{MaxAge: 5, Private: true})(jsonHandler(`[]`))
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get("Cache-Control"); got != "private, max-age=5" {
		t.Errorf("unexpected Cache-Control %q", got)
	}
	if rec.Header().Get("Vary") != "" {
		t.Error("expected no Vary header")
	}
}

func TestComputeETag(t *testing.T) {
	a := computeETag([]byte("a"))
	if a != computeETag([]byte("a")) {
		t.Error("expected stable ETag for identical bodies")
	}
	if a == computeETag([]byte("b")) {
		t.Error("expected different ETags for different bodies")
	}
}

func TestETagMatch(t *testing.T) {
	etag := `W/"abc"`
	tests := []struct {
		header string
		want   bool
	}{
		{`W/"abc"`, true},
		{`"abc"`, true},
		{`"x", W/"abc"`, true},
		{`*`, true},
		{`"other"`, false},
	}
	for _, tt := range tests {
		if got := etagMatch(tt.header, etag); got != tt.want {
			t.Errorf("etagMatch(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
