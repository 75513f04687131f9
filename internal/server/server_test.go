package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"venueweather/internal/api"
	"venueweather/internal/config"
	"venueweather/internal/database"
	"venueweather/internal/ingest"

	"go.uber.org/zap"
)

type fakeLoader struct {
	result ingest.Result
	err    error
	calls  []ingest.Request
}

func (f *fakeLoader) Load(ctx context.Context, req ingest.Request) (ingest.Result, error) {
	f.calls = append(f.calls, req)
	return f.result, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func newTestServer(loader Loader, db Pinger) *Server {
	return NewServer(loader, db, zap.NewNop(), config.ServerConfig{Addr: ":0"})
}

func doRequest(s *Server, method, path, body string) *http.Response {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w.Result()
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestNewServer(t *testing.T) {
	s := NewServer(&fakeLoader{}, nil, zap.NewNop(), config.ServerConfig{
		Addr:         ":9999",
		ReadTimeout:  time.Second,
		WriteTimeout: 2 * time.Second,
		IdleTimeout:  3 * time.Second,
	})

	if s.mux == nil {
		t.Error("NewServer() mux should not be nil")
	}
	if s.httpServer.Addr != ":9999" {
		t.Errorf("Addr = %v, want :9999", s.httpServer.Addr)
	}
	if s.httpServer.ReadTimeout != time.Second || s.httpServer.WriteTimeout != 2*time.Second || s.httpServer.IdleTimeout != 3*time.Second {
		t.Error("NewServer() did not apply configured timeouts")
	}
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
		wantBody   string
	}{
		{"no database configured", nil, http.StatusOK, "healthy"},
		{"database reachable", fakePinger{}, http.StatusOK, "healthy"},
		{"database down", fakePinger{err: errors.New("dial tcp: connection refused")}, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(newTestServer(&fakeLoader{}, tt.db), http.MethodGet, "/health", "")

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("handleHealth() status = %v, want %v", resp.StatusCode, tt.wantStatus)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("handleHealth() content-type = %v, want application/json", ct)
			}

			body := decodeBody(t, resp)
			if body["status"] != tt.wantBody {
				t.Errorf("handleHealth() status in body = %v, want %v", body["status"], tt.wantBody)
			}
			if body["time"] == "" {
				t.Error("handleHealth() time should not be empty")
			}
		})
	}
}

func TestHandleLoadWeatherData_Success(t *testing.T) {
	loader := &fakeLoader{result: ingest.Result{RequestID: "req-1", VenueID: 1, Rows: 24}}
	s := newTestServer(loader, nil)

	resp := doRequest(s, http.MethodPost, "/load_weather_data",
		`{"venue_id": 1, "start_date": "2023-01-01", "end_date": "2023-01-01"}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("X-Request-ID"); got != "req-1" {
		t.Errorf("X-Request-ID = %q, want req-1", got)
	}

	body := decodeBody(t, resp)
	if body["message"] != "Weather data saved successfully!" {
		t.Errorf("message = %v", body["message"])
	}
	if body["rows"] != float64(24) || body["venue_id"] != float64(1) || body["request_id"] != "req-1" {
		t.Errorf("unexpected body %v", body)
	}

	want := ingest.Request{VenueID: 1, StartDate: "2023-01-01", EndDate: "2023-01-01"}
	if len(loader.calls) != 1 || loader.calls[0] != want {
		t.Errorf("loader calls = %+v, want [%+v]", loader.calls, want)
	}
}

func TestHandleLoadWeatherData_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "unknown venue",
			err:        &ingest.Error{Kind: ingest.KindNotFound, Cause: database.ErrVenueNotFound},
			wantStatus: http.StatusNotFound,
			wantDetail: "Venue not found",
		},
		{
			name:       "upstream error",
			err:        &ingest.Error{Kind: ingest.KindUpstreamUnavailable, Cause: &api.StatusError{StatusCode: 500, Body: "boom"}},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Internal error: API error: status 500, body: boom",
		},
		{
			name:       "malformed upstream data",
			err:        &ingest.Error{Kind: ingest.KindUpstreamMalformed, Cause: ingest.ErrMisaligned},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Internal error: " + ingest.ErrMisaligned.Error(),
		},
		{
			name:       "storage failure",
			err:        &ingest.Error{Kind: ingest.KindStorageFailure, Cause: errors.New("failed to commit transaction: deadlock")},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Internal error: failed to commit transaction: deadlock",
		},
		{
			name:       "untyped error",
			err:        errors.New("unexpected"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Internal error: unexpected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeLoader{err: tt.err}, nil)

			resp := doRequest(s, http.MethodPost, "/load_weather_data",
				`{"venue_id": 999, "start_date": "2023-01-01", "end_date": "2023-01-01"}`)

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %v, want %v", resp.StatusCode, tt.wantStatus)
			}
			body := decodeBody(t, resp)
			if body["detail"] != tt.wantDetail {
				t.Errorf("detail = %q, want %q", body["detail"], tt.wantDetail)
			}
		})
	}
}

func TestHandleLoadWeatherData_InvalidMethod(t *testing.T) {
	loader := &fakeLoader{}
	resp := doRequest(newTestServer(loader, nil), http.MethodGet, "/load_weather_data", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusMethodNotAllowed)
	}
	if resp.Header.Get("Allow") != http.MethodPost {
		t.Errorf("Allow = %q, want POST", resp.Header.Get("Allow"))
	}
	if len(loader.calls) != 0 {
		t.Error("loader should not be called")
	}
}

func TestHandleLoadWeatherData_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "invalid json"},
		{"empty body", ""},
		{"missing venue id", `{"start_date": "2023-01-01", "end_date": "2023-01-01"}`},
		{"missing start date", `{"venue_id": 1, "end_date": "2023-01-01"}`},
		{"missing end date", `{"venue_id": 1, "start_date": "2023-01-01"}`},
		{"venue id not a number", `{"venue_id": "one", "start_date": "2023-01-01", "end_date": "2023-01-01"}`},
		{"malformed start date", `{"venue_id": 1, "start_date": "01/01/2023", "end_date": "2023-01-01"}`},
		{"malformed end date", `{"venue_id": 1, "start_date": "2023-01-01", "end_date": "2023-13-45"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := &fakeLoader{}
			resp := doRequest(newTestServer(loader, nil), http.MethodPost, "/load_weather_data", tt.body)

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusBadRequest)
			}
			body := decodeBody(t, resp)
			if body["detail"] == "" || body["detail"] == nil {
				t.Error("400 response should carry a detail")
			}
			if len(loader.calls) != 0 {
				t.Error("loader should not be called for an invalid request")
			}
		})
	}
}

func TestHandleLoadWeatherData_ValidatesBeforeVenueLookup(t *testing.T) {
	loader := &fakeLoader{err: &ingest.Error{Kind: ingest.KindNotFound, Cause: database.ErrVenueNotFound}}

	resp := doRequest(newTestServer(loader, nil), http.MethodPost, "/load_weather_data",
		`{"venue_id": 999, "start_date": "2023/01/01", "end_date": "2023-01-01"}`)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusBadRequest)
	}
	body := decodeBody(t, resp)
	if detail, _ := body["detail"].(string); !strings.Contains(detail, "StartDate") {
		t.Errorf("detail = %q, want it to name StartDate", detail)
	}
	if len(loader.calls) != 0 {
		t.Error("venue lookup should not run for a malformed date")
	}
}

func TestHandleLoadWeatherData_BodyTooLarge(t *testing.T) {
	loader := &fakeLoader{}
	body := `{"venue_id": 1, "start_date": "` + strings.Repeat("x", maxBodyBytes) + `"}`

	req := httptest.NewRequest(http.MethodPost, "/load_weather_data", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	newTestServer(loader, nil).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %v, want %v", w.Code, http.StatusBadRequest)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	resp := doRequest(newTestServer(&fakeLoader{}, nil), http.MethodGet, "/metrics", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusOK)
	}

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "venueweather_app_info") {
		t.Error("/metrics should expose venueweather_app_info")
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := NewServer(&fakeLoader{}, nil, zap.NewNop(), config.ServerConfig{Addr: "127.0.0.1:0"})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	// give ListenAndServe a moment to bind
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() error = %v, want nil after Shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after Shutdown")
	}
}
