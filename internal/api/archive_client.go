package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"venueweather/internal/metrics"
	"venueweather/internal/models"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://archive-api.open-meteo.com/v1/archive"

// maxErrorBody caps how much of a failed response is kept for diagnostics
const maxErrorBody = 64 << 10

// HourlyVariables are the hourly series requested for every ingestion
var HourlyVariables = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"dew_point_2m",
	"apparent_temperature",
	"precipitation_probability",
	"precipitation",
	"rain",
	"showers",
	"snowfall",
	"snow_depth",
}

// ErrDecode marks a response body that could not be turned into an ArchiveResponse
var ErrDecode = errors.New("malformed archive response")

// StatusError is returned when the archive API answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Reason     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("API error: status %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("API error: status %d, body: %s", e.StatusCode, e.Body)
}

// ArchiveClient is a client for the Open-Meteo historical archive API
type ArchiveClient struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// ArchiveParams describes one archive query. Dates are inclusive YYYY-MM-DD.
type ArchiveParams struct {
	Latitude     float64
	Longitude    float64
	StartDate    string
	EndDate      string
	HourlyFields []string
	Timezone     string
}

// NewArchiveClient creates a new archive API client. A zero timeout leaves the
// http.Client without one.
func NewArchiveClient(baseURL string, timeout time.Duration, logger *zap.Logger) *ArchiveClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &ArchiveClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger,
	}
}

// BuildURL builds the archive request URL. Timezone defaults to "auto" and the
// hourly fields default to HourlyVariables.
func (c *ArchiveClient) BuildURL(params ArchiveParams) string {
	if params.Timezone == "" {
		params.Timezone = "auto"
	}

	if len(params.HourlyFields) == 0 {
		params.HourlyFields = HourlyVariables
	}

	return fmt.Sprintf("%s?latitude=%s&longitude=%s&start_date=%s&end_date=%s&hourly=%s&timezone=%s",
		c.baseURL,
		strconv.FormatFloat(params.Latitude, 'f', -1, 64),
		strconv.FormatFloat(params.Longitude, 'f', -1, 64),
		url.QueryEscape(params.StartDate),
		url.QueryEscape(params.EndDate),
		strings.Join(params.HourlyFields, ","),
		url.QueryEscape(params.Timezone),
	)
}

// FetchHourly performs a single archive request. It never retries: a transport
// failure, a non-2xx status or an undecodable body fails the call.
func (c *ArchiveClient) FetchHourly(ctx context.Context, params ArchiveParams) (*models.ArchiveResponse, error) {
	reqURL := c.BuildURL(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug("requesting archive data",
		zap.Float64("latitude", params.Latitude),
		zap.Float64("longitude", params.Longitude),
		zap.String("start_date", params.StartDate),
		zap.String("end_date", params.EndDate),
	)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest("transport_error", 0, time.Since(start))
		return nil, fmt.Errorf("failed to fetch archive data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordUpstreamRequest("http_error", resp.StatusCode, time.Since(start))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, newStatusError(resp.StatusCode, body)
	}

	var archive models.ArchiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&archive); err != nil {
		metrics.RecordUpstreamRequest("decode_error", resp.StatusCode, time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if archive.Hourly.Time == nil {
		metrics.RecordUpstreamRequest("decode_error", resp.StatusCode, time.Since(start))
		return nil, fmt.Errorf("%w: no hourly time axis", ErrDecode)
	}

	metrics.RecordUpstreamRequest("ok", resp.StatusCode, time.Since(start))

	c.logger.Info("received archive data",
		zap.Int("status", resp.StatusCode),
		zap.Int("hours", len(archive.Hourly.Time)),
		zap.String("timezone", archive.Timezone),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &archive, nil
}

// newStatusError keeps the upstream reason when the body is an Open-Meteo error document
func newStatusError(status int, body []byte) *StatusError {
	statusErr := &StatusError{StatusCode: status, Body: string(body)}

	var apiErr struct {
		Error  bool   `json:"error"`
		Reason string `json:"reason"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error {
		statusErr.Reason = apiErr.Reason
	}

	return statusErr
}
