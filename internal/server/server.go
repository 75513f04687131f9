package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"venueweather/internal/config"
	"venueweather/internal/ingest"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// maxBodyBytes caps the size of a load request body
const maxBodyBytes = 1 << 20

var validate = validator.New()

// LoadWeatherRequest is the body of POST /load_weather_data
type LoadWeatherRequest struct {
	VenueID   *int64 `json:"venue_id" validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// LoadWeatherResponse is returned once the rows are committed
type LoadWeatherResponse struct {
	Message   string `json:"message"`
	VenueID   int64  `json:"venue_id"`
	Rows      int    `json:"rows"`
	RequestID string `json:"request_id"`
}

// Loader runs one ingestion
type Loader interface {
	Load(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// Pinger reports whether the store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	loader     Loader
	db         Pinger
	logger     *zap.Logger
	mux        *http.ServeMux
	httpServer *http.Server
}

// NewServer creates a new HTTP server
func NewServer(loader Loader, db Pinger, logger *zap.Logger, cfg config.ServerConfig) *Server {
	s := &Server{
		loader: loader,
		db:     db,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	// Register routes
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/load_weather_data", s.handleLoadWeatherData)
	s.mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth reports healthy when the database answers a ping
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"time":   now,
				"error":  err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   now,
	})
}

// handleLoadWeatherData fetches and stores hourly weather for one venue
func (s *Server) handleLoadWeatherData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req LoadWeatherRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := validate.Struct(req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.loader.Load(r.Context(), ingest.Request{
		VenueID:   *req.VenueID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if result.RequestID != "" {
		w.Header().Set("X-Request-ID", result.RequestID)
	}
	if err != nil {
		switch ingest.KindOf(err) {
		case ingest.KindNotFound:
			writeDetail(w, http.StatusNotFound, "Venue not found")
		default:
			writeDetail(w, http.StatusInternalServerError, "Internal error: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, LoadWeatherResponse{
		Message:   "Weather data saved successfully!",
		VenueID:   result.VenueID,
		Rows:      result.Rows,
		RequestID: result.RequestID,
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
