package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/draftline/draftline/config"
)

func TestIsPublicPath(t *testing.T) {
	a := &API{cfg: config.Default()}

	tests := []struct {
		path   string
		public bool
	}{
		{"/", true},
		{"/health", true},
		{"/api/v1/openapi.yaml", true},
		{"/api/v1/docs", true},
		{"/api/v1/docs/index.html", true},
		{"/api/v1/redoc", true},
		{"/api/v1/generate", false},
		{"/api/v1/providers/anthropic/status", false},
		// Root is exact-match only.
		{"/anything", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.public, a.isPublicPath(tt.path), tt.path)
	}
}

func TestRequestIsSecure(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, requestIsSecure(r))

	r.Header.Set("X-Forwarded-Proto", "https")
	assert.True(t, requestIsSecure(r))

	r.Header.Set("X-Forwarded-Proto", "http")
	assert.False(t, requestIsSecure(r))

	tls := httptest.NewRequest(http.MethodGet, "https://example.test/", nil)
	assert.True(t, requestIsSecure(tls))
}
