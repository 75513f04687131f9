package ingest

import (
	"fmt"
	"time"

	"venueweather/internal/api"
	"venueweather/internal/models"
)

// hourlyTimeLayout is the archive's iso8601 hour format, without a zone
const hourlyTimeLayout = "2006-01-02T15:04"

// BuildObservations turns an archive response into one observation per
// timestamp. A variable the upstream left out becomes NULL on every row; a
// variable that is present must have exactly one value per timestamp.
func BuildObservations(venueID int64, resp *models.ArchiveResponse) ([]models.WeatherObservation, error) {
	h := resp.Hourly
	n := len(h.Time)

	series := h.Series()
	for _, name := range api.HourlyVariables {
		values, ok := series[name]
		if !ok || values == nil {
			continue
		}
		if len(values) != n {
			return nil, fmt.Errorf("%w: %s has %d values for %d timestamps", ErrMisaligned, name, len(values), n)
		}
	}

	loc := responseZone(resp)

	observations := make([]models.WeatherObservation, n)
	for i, ts := range h.Time {
		date, err := time.ParseInLocation(hourlyTimeLayout, ts, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q at index %d: %w", ts, i, err)
		}

		observations[i] = models.WeatherObservation{
			VenueID:                  venueID,
			Date:                     date,
			Temperature:              models.ValueAt(h.Temperature2m, i),
			RelativeHumidity:         models.ValueAt(h.RelativeHumidity2m, i),
			Dewpoint:                 models.ValueAt(h.DewPoint2m, i),
			ApparentTemperature:      models.ValueAt(h.ApparentTemperature, i),
			PrecipitationProbability: models.ValueAt(h.PrecipitationProbability, i),
			Precipitation:            models.ValueAt(h.Precipitation, i),
			Rain:                     models.ValueAt(h.Rain, i),
			Showers:                  models.ValueAt(h.Showers, i),
			Snowfall:                 models.ValueAt(h.Snowfall, i),
			SnowDepth:                models.ValueAt(h.SnowDepth, i),
		}
	}

	return observations, nil
}

// responseZone is the single offset the archive reports for the response.
// Timestamps parsed in it keep the upstream's wall clock unchanged.
func responseZone(resp *models.ArchiveResponse) *time.Location {
	name := resp.Timezone
	if name == "" {
		name = resp.TimezoneAbbreviation
	}
	return time.FixedZone(name, resp.UTCOffsetSeconds)
}
