package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestRespondJSON_SetsStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Created", http.StatusCreated},
		{"BadRequest", http.StatusBadRequest},
		{"NotFound", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, nil)

			assertStatusCode(t, recorder, tc.statusCode)
			assertContentType(t, recorder, "application/json")
			if recorder.Body.Len() != 0 {
				t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
			}
		})
	}
}

func TestRespondJSON_EncodesData(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusOK, map[string]any{"phase": "countdown", "countdown": 3})

	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["phase"] != "countdown" {
		t.Errorf("expected phase 'countdown', got '%v'", result["phase"])
	}
	if result["countdown"] != float64(3) {
		t.Errorf("expected countdown 3, got %v", result["countdown"])
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusUnprocessableEntity, "bad box")

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
	assertJSONError(t, recorder, "bad box")
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\nb\rc"); got != "abc" {
		t.Errorf("sanitizeForLog() = %q, want %q", got, "abc")
	}
}

func TestValidationMessage(t *testing.T) {
	type sample struct {
		Width int    `validate:"gt=0"`
		Name  string `validate:"required"`
	}
	err := validator.New().Struct(sample{})
	msg := validationMessage(err)
	if !strings.Contains(msg, "sample.Width must satisfy gt=0") {
		t.Errorf("message %q should mention Width", msg)
	}
	if !strings.Contains(msg, "sample.Name failed required") {
		t.Errorf("message %q should mention Name", msg)
	}
}

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}
