package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	gohttp "github.com/km-arc/go-beans/http"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newResponse(t *testing.T) (*gohttp.Response, *httptest.ResponseRecorder) {
	t.Helper()
	rr := httptest.NewRecorder()
	return gohttp.NewResponse(rr), rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	return m
}

// ── JSON ──────────────────────────────────────────────────────────────────────

func TestResponse_JSON(t *testing.T) {
	res, rr := newResponse(t)
	res.JSON(http.StatusOK, map[string]any{"key": "val"})

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q want application/json", ct)
	}
	m := decodeJSON(t, rr)
	if m["key"] != "val" {
		t.Errorf("body key: got %v want val", m["key"])
	}
}

func TestResponse_Success(t *testing.T) {
	res, rr := newResponse(t)
	res.Success(map[string]any{"phase": "active"})

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d want 200", rr.Code)
	}
	m := decodeJSON(t, rr)
	data, ok := m["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data envelope, got %T", m["data"])
	}
	if data["phase"] != "active" {
		t.Errorf("data.phase: got %v want active", data["phase"])
	}
}

// ── Errors ────────────────────────────────────────────────────────────────────

func TestResponse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		send    func(*gohttp.Response)
		status  int
		message string
	}{
		{"Error", func(r *gohttp.Response) { r.Error(http.StatusConflict, "busy") }, http.StatusConflict, "busy"},
		{"NotFound default", func(r *gohttp.Response) { r.NotFound() }, http.StatusNotFound, "Not found."},
		{"NotFound custom", func(r *gohttp.Response) { r.NotFound("no context") }, http.StatusNotFound, "no context"},
		{"MethodNotAllowed", func(r *gohttp.Response) { r.MethodNotAllowed() }, http.StatusMethodNotAllowed, "Method not allowed."},
		{"Unavailable", func(r *gohttp.Response) { r.Unavailable("kernel is not active") }, http.StatusServiceUnavailable, "kernel is not active"},
		{"ServerError", func(r *gohttp.Response) { r.ServerError() }, http.StatusInternalServerError, "Server Error."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, rr := newResponse(t)
			tt.send(res)

			if rr.Code != tt.status {
				t.Errorf("status: got %d want %d", rr.Code, tt.status)
			}
			m := decodeJSON(t, rr)
			if m["message"] != tt.message {
				t.Errorf("message: got %v want %q", m["message"], tt.message)
			}
		})
	}
}

func TestResponse_Raw(t *testing.T) {
	res, rr := newResponse(t)
	if res.Raw() != rr {
		t.Error("Raw() should return the wrapped ResponseWriter")
	}
}
