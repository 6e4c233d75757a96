//go:build unit

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"gitlab-trace/internal/config"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestAuthenticationMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		cfg            *config.Config
		header         string
		expectedStatus int
	}{
		{name: "disabled", cfg: &config.Config{}, expectedStatus: http.StatusTeapot},
		{name: "missing token", cfg: &config.Config{EnableAuthentication: true, BearerToken: "secret"}, expectedStatus: http.StatusUnauthorized},
		{name: "wrong scheme", cfg: &config.Config{EnableAuthentication: true, BearerToken: "secret"}, header: "Basic secret", expectedStatus: http.StatusUnauthorized},
		{name: "wrong token", cfg: &config.Config{EnableAuthentication: true, BearerToken: "secret"}, header: "Bearer nope", expectedStatus: http.StatusUnauthorized},
		{name: "no configured token", cfg: &config.Config{EnableAuthentication: true}, header: "Bearer secret", expectedStatus: http.StatusUnauthorized},
		{name: "valid token", cfg: &config.Config{EnableAuthentication: true, BearerToken: "secret"}, header: "Bearer  secret ", expectedStatus: http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/requirements", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			AuthenticationMiddleware(tt.cfg)(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if rec.Code == http.StatusUnauthorized {
				assert.Equal(t, `Bearer realm="gitlab-trace"`, rec.Header().Get("WWW-Authenticate"))
				assert.Contains(t, rec.Body.String(), `"error":"unauthorized: `)
			}
		})
	}
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	rec := httptest.NewRecorder()
	h := Chain(okHandler(), mark("outer"), SecurityHeadersMiddleware(), LoggingMiddleware(), mark("inner"))
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	assert.Equal(t, http.StatusOK, rw.StatusCode())
	rw.WriteHeader(http.StatusNotFound)
	n, err := rw.Write([]byte("missing"))

	assert.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, http.StatusNotFound, rw.StatusCode())
	assert.Equal(t, 7, rw.written)
}
