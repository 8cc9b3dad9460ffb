package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

func TestIsOriginAllowed(t *testing.T) {
	allowed := map[string]struct{}{"https://mirror.example.com": {}}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", false},
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"https://localhost:8443", true},
		{"http://localhost.evil.com", false},
		{"https://mirror.example.com", true},
		{"https://other.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			if got := isOriginAllowed(tt.origin, allowed); got != tt.want {
				t.Errorf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestParseAllowedOrigins(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", " https://a.example.com ,,https://b.example.com")
	origins := parseAllowedOrigins()
	if len(origins) != 2 {
		t.Fatalf("expected 2 origins, got %d", len(origins))
	}
	if _, ok := origins["https://a.example.com"]; !ok {
		t.Error("expected trimmed origin to be allowed")
	}
}

func TestCORS(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://mirror.example.com")
	called := false
	handler := CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("OPTIONS", "/api/v1/masks", nil)
	req.Header.Set("Origin", "https://mirror.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK || called {
		t.Errorf("preflight should short-circuit with 200, got %d (called=%v)", recorder.Code, called)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://mirror.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if !strings.Contains(recorder.Header().Get("Access-Control-Expose-Headers"), "X-Mask-Source") {
		t.Error("expected X-Mask-Source to be exposed")
	}

	req = httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if !called || recorder.Code != http.StatusTeapot {
		t.Error("expected request to reach the handler")
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected Access-Control-Allow-Origin %q", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("GET", "/", nil))

	if recorder.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff")
	}
	if recorder.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected X-Frame-Options DENY")
	}
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
		msg    string
	}{
		{"ok", 0, "debug", "request served"},
		{"client error", http.StatusNotFound, "warning", "request rejected"},
		{"server error", http.StatusBadGateway, "error", "request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logrus.New()
			log.SetOutput(&buf)
			log.SetLevel(logrus.DebugLevel)
			log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

			handler := chiMiddleware.RequestID(RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
			})))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/v1/sessions", nil))

			out := buf.String()
			if !strings.Contains(out, "level="+tt.level) || !strings.Contains(out, tt.msg) {
				t.Errorf("unexpected log output: %s", out)
			}
			if !strings.Contains(out, "path=/api/v1/sessions") || !strings.Contains(out, "request_id=") {
				t.Errorf("expected path and request id fields: %s", out)
			}
		})
	}
}
