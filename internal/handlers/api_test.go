package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "creator-analytics/internal/errors"
)

func decodeEnvelope(t *testing.T, body *strings.Reader) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return response
}

func TestAPIHandlers_HandleSnapshot(t *testing.T) {
	handlers := NewAPIHandlers(createTestService(), "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot?shop=shop-1", nil)
	w := httptest.NewRecorder()
	handlers.HandleSnapshot(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected content-type 'application/json', got %q", ct)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("expected ETag header")
	}

	response := decodeEnvelope(t, strings.NewReader(w.Body.String()))
	if success, ok := response["success"].(bool); !ok || !success {
		t.Fatal("expected success=true in response")
	}

	data := response["data"].(map[string]any)
	if data["shop_id"] != "shop-1" {
		t.Errorf("shop_id = %v", data["shop_id"])
	}
	revenue := data["revenue"].(map[string]any)
	if revenue["total_revenue"] != "300" {
		t.Errorf("total_revenue = %v, want \"300\"", revenue["total_revenue"])
	}
	if warnings, ok := data["warnings"].([]any); !ok || len(warnings) != 1 {
		t.Errorf("expected one warning for the malformed amount, got %v", data["warnings"])
	}
}

func TestAPIHandlers_HandleSnapshot_DateRange(t *testing.T) {
	handlers := NewAPIHandlers(createTestService(), "shop-1", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot?from=2024-02-01&to=2024-02-14", nil)
	w := httptest.NewRecorder()
	handlers.HandleSnapshot(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	data := decodeEnvelope(t, strings.NewReader(w.Body.String()))["data"].(map[string]any)
	revenue := data["revenue"].(map[string]any)
	if revenue["total_revenue"] != "150" {
		t.Errorf("to is inclusive: total_revenue = %v, want \"150\"", revenue["total_revenue"])
	}
}

func TestAPIHandlers_HandleSnapshot_BadRequests(t *testing.T) {
	handlers := NewAPIHandlers(createTestService(), "", testLogger())

	tests := []struct {
		name string
		url  string
		code apperrors.ErrorCode
	}{
		{"missing shop", "/api/snapshot", apperrors.CodeBadRequest},
		{"bad from", "/api/snapshot?shop=shop-1&from=01/02/2024", apperrors.CodeBadRequest},
		{"bad to", "/api/snapshot?shop=shop-1&to=tomorrow", apperrors.CodeBadRequest},
		{"inverted", "/api/snapshot?shop=shop-1&from=2024-03-01&to=2024-02-01", apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.HandleSnapshot(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), `"success":false`) {
				t.Errorf("expected error envelope, got %s", w.Body.String())
			}
			if want := `"code":"` + string(tt.code) + `"`; !strings.Contains(w.Body.String(), want) {
				t.Errorf("expected %s in %s", want, w.Body.String())
			}
		})
	}
}

func TestAPIHandlers_HandleSnapshot_RepositoryFailure(t *testing.T) {
	failing := failingComputer{err: apperrors.RepositoryWrap(errors.New("db down"), "fetch orders")}
	handlers := NewAPIHandlers(failing, "shop-1", testLogger())

	w := httptest.NewRecorder()
	handlers.HandleSnapshot(w, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "db down") {
		t.Error("internal error detail leaked to client")
	}
}

func TestAPIHandlers_HandleExport(t *testing.T) {
	handlers := NewAPIHandlers(createTestService(), "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/export.csv?shop=shop-1", nil)
	w := httptest.NewRecorder()
	handlers.HandleExport(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content-type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "snapshot-shop-1.csv") {
		t.Errorf("content-disposition = %q", cd)
	}

	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if records[0][0] != "label" || records[1][0] != "shop_id" || records[1][1] != "shop-1" {
		t.Errorf("unexpected leading rows: %v", records[:2])
	}

	values := make(map[string]string)
	for _, r := range records[1:] {
		values[r[0]] = r[1]
	}
	if values["total_revenue"] != "300" {
		t.Errorf("total_revenue = %q", values["total_revenue"])
	}
	if values["dunning.at_risk_mrr"] != "25" {
		t.Errorf("dunning.at_risk_mrr = %q", values["dunning.at_risk_mrr"])
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := NewAPIHandlers(createTestService(), "", testLogger())

	w := httptest.NewRecorder()
	handlers.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	data := decodeEnvelope(t, strings.NewReader(w.Body.String()))["data"].(map[string]any)
	if data["status"] != "healthy" {
		t.Errorf("status = %v", data["status"])
	}
	if _, ok := data["checks"]; ok {
		t.Error("no checks registered, none expected in body")
	}

	handlers.AddHealthCheck("redis", staticCheck{err: errors.New("connection refused")})
	w = httptest.NewRecorder()
	handlers.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	data = decodeEnvelope(t, strings.NewReader(w.Body.String()))["data"].(map[string]any)
	if data["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", data["status"])
	}
	checks := data["checks"].(map[string]any)
	if checks["redis"] != "connection refused" {
		t.Errorf("redis check = %v", checks["redis"])
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	svc := createTestService()
	handlers := NewAPIHandlers(svc, "", testLogger())
	handlers.AddStats("breaker", func() any { return "closed" })

	handlers.HandleSnapshot(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/snapshot?shop=shop-1", nil))

	w := httptest.NewRecorder()
	handlers.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	data := decodeEnvelope(t, strings.NewReader(w.Body.String()))["data"].(map[string]any)
	if data["snapshots_computed"] != float64(1) {
		t.Errorf("snapshots_computed = %v", data["snapshots_computed"])
	}
	if data["breaker"] != "closed" {
		t.Errorf("breaker = %v", data["breaker"])
	}
	if data["last_shop"] != "shop-1" {
		t.Errorf("last_shop = %v", data["last_shop"])
	}
}
