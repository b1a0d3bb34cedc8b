package security_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chilisaus/storefront-api/internal/security"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHeadersMiddleware(t *testing.T) {
	handler := security.Headers{}.Middleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))

	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	require.Empty(t, rec.Header().Get("Strict-Transport-Security"), "no HSTS over plain http")
}

func TestBodyLimitRejectsDeclaredOversize(t *testing.T) {
	handler := security.BodyLimit{Max: 10}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(strings.Repeat("x", 32)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestBodyLimitCapsRead(t *testing.T) {
	var readErr error
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		for readErr == nil {
			_, readErr = r.Body.Read(buf)
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := security.BodyLimit{Max: 10}.Middleware(inner)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(strings.Repeat("x", 32)))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Error(t, readErr)
	require.NotErrorIs(t, readErr, io.EOF)
}

func TestBodyLimitPassesSmallBodies(t *testing.T) {
	handler := security.BodyLimit{Max: 1 << 20}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts", strings.NewReader(`{"anonId":"a"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
