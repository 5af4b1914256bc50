package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authedRequest(header, value string) *http.Request {
	req := httptest.NewRequest("POST", "/v1/scenarios", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	return req
}

func TestAPIKeyAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := APIKeyAuth("secret-key")(next)

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"x-api-key accepted", authedRequest("X-API-Key", "secret-key"), http.StatusNoContent},
		{"bearer accepted", authedRequest("Authorization", "Bearer secret-key"), http.StatusNoContent},
		{"missing key", authedRequest("", ""), http.StatusUnauthorized},
		{"wrong key", authedRequest("X-API-Key", "guess"), http.StatusForbidden},
		{"wrong bearer", authedRequest("Authorization", "Bearer guess"), http.StatusForbidden},
		{"basic auth ignored", authedRequest("Authorization", "Basic abc"), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, tt.req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequestAPIKeyPrefersHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-API-Key", "from-header")
	req.Header.Set("Authorization", "Bearer from-bearer")

	if got := requestAPIKey(req); got != "from-header" {
		t.Errorf("requestAPIKey = %q, want from-header", got)
	}
}
