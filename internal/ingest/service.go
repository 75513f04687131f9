package ingest

import (
	"context"
	"errors"
	"fmt"

	"venueweather/internal/api"
	"venueweather/internal/database"
	"venueweather/internal/events"
	"venueweather/internal/metrics"
	"venueweather/internal/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Request asks for the hourly weather of one venue between two inclusive dates
type Request struct {
	VenueID   int64
	StartDate string
	EndDate   string
}

// Result describes a committed ingestion
type Result struct {
	RequestID string
	VenueID   int64
	Rows      int
}

// Session is the request-scoped view of the store
type Session interface {
	GetVenue(ctx context.Context, id int64) (*models.Venue, error)
	InsertObservations(ctx context.Context, observations []models.WeatherObservation) (int, error)
	Close() error
}

// SessionOpener hands out a new Session per request
type SessionOpener func(ctx context.Context) (Session, error)

// WeatherSource fetches hourly archive data
type WeatherSource interface {
	FetchHourly(ctx context.Context, params api.ArchiveParams) (*models.ArchiveResponse, error)
}

// EventPublisher announces committed ingestions
type EventPublisher interface {
	PublishIngested(ctx context.Context, event events.Event) error
}

// Service loads archive weather for a venue into the store
type Service struct {
	open      SessionOpener
	source    WeatherSource
	publisher EventPublisher
	logger    *zap.Logger
	clock     clockwork.Clock
}

// NewService creates the ingestion service. publisher may be nil.
func NewService(open SessionOpener, source WeatherSource, publisher EventPublisher, logger *zap.Logger, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		open:      open,
		source:    source,
		publisher: publisher,
		logger:    logger,
		clock:     clock,
	}
}

// Load looks up the venue, fetches its hourly archive data for the requested
// range and inserts every hour in a single transaction. Failures are returned
// as *Error and leave nothing behind in the store.
func (s *Service) Load(ctx context.Context, req Request) (result Result, err error) {
	start := s.clock.Now()
	result = Result{RequestID: uuid.NewString(), VenueID: req.VenueID}

	log := s.logger.With(
		zap.String("request_id", result.RequestID),
		zap.Int64("venue_id", req.VenueID),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	)

	defer func() {
		outcome := "success"
		if err != nil {
			outcome = KindOf(err).String()
		}
		metrics.RecordIngestion(outcome, result.Rows, s.clock.Since(start))
	}()

	session, err := s.open(ctx)
	if err != nil {
		return result, s.fail(log, KindStorageFailure, fmt.Errorf("failed to open session: %w", err))
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn("failed to release session", zap.Error(cerr))
		}
	}()

	venue, err := session.GetVenue(ctx, req.VenueID)
	if errors.Is(err, database.ErrVenueNotFound) {
		return result, s.fail(log, KindNotFound, err)
	}
	if err != nil {
		return result, s.fail(log, KindStorageFailure, err)
	}

	resp, err := s.source.FetchHourly(ctx, api.ArchiveParams{
		Latitude:  venue.Latitude,
		Longitude: venue.Longitude,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		kind := KindUpstreamUnavailable
		if errors.Is(err, api.ErrDecode) {
			kind = KindUpstreamMalformed
		}
		return result, s.fail(log, kind, err)
	}

	observations, err := BuildObservations(req.VenueID, resp)
	if err != nil {
		return result, s.fail(log, KindUpstreamMalformed, err)
	}

	rows, err := session.InsertObservations(ctx, observations)
	if err != nil {
		return result, s.fail(log, KindStorageFailure, err)
	}
	result.Rows = rows

	log.Info("weather data saved",
		zap.String("venue_name", venue.Name),
		zap.Int("rows", rows),
		zap.Duration("elapsed", s.clock.Since(start)),
	)

	s.publish(ctx, log, req, result)

	return result, nil
}

func (s *Service) fail(log *zap.Logger, kind Kind, cause error) error {
	log.Error("ingestion failed", zap.Stringer("kind", kind), zap.Error(cause))
	return &Error{Kind: kind, Cause: cause}
}

// publish is best effort; the rows are already committed
func (s *Service) publish(ctx context.Context, log *zap.Logger, req Request, result Result) {
	if s.publisher == nil {
		return
	}

	event := events.Event{
		RequestID:  result.RequestID,
		VenueID:    result.VenueID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Rows:       result.Rows,
		IngestedAt: s.clock.Now().UTC(),
	}
	if err := s.publisher.PublishIngested(ctx, event); err != nil {
		log.Warn("failed to publish ingestion event", zap.Error(err))
	}
}
