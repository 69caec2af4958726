package main

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler(t *testing.T) {
	handler := newHandler(stubOptions{bodyBytes: 16}, rand.New(rand.NewSource(1)))

	tests := []struct {
		name       string
		path       string
		accept     string
		wantStatus int
		wantType   string
	}{
		{"ping", "/health/ping", "", http.StatusOK, ""},
		{"source", "/project/a.jpg", "", http.StatusOK, "image/jpeg"},
		{"avif negotiation", "/project/a.jpg", "image/avif,image/png,image/jpeg", http.StatusOK, "image/avif"},
		{"resize png", "/800/project/b.png", "", http.StatusOK, "image/png"},
		{"cdn-cgi explicit format", "/cdn-cgi/image/width=400,format=webp/http://x/project/a.jpg", "", http.StatusOK, "image/webp"},
		{"not an image", "/project/readme.txt", "", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantType != "" && rec.Header().Get("Content-Type") != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", rec.Header().Get("Content-Type"), tt.wantType)
			}
		})
	}
}

func TestHandlerErrorRate(t *testing.T) {
	handler := newHandler(stubOptions{errorRate: 1}, rand.New(rand.NewSource(1)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a.jpg", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
