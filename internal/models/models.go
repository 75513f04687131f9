package models

import "time"

// Venue is a physical location weather is tracked for. Venues are maintained
// outside this service and are only ever read here.
type Venue struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// WeatherObservation is one hourly reading for a venue.
// A nil measurement is stored as NULL.
type WeatherObservation struct {
	ID                       int64     `json:"id"`
	VenueID                  int64     `json:"venue_id"`
	Date                     time.Time `json:"date"`
	Temperature              *float64  `json:"temperature"`
	RelativeHumidity         *float64  `json:"relative_humidity"`
	Dewpoint                 *float64  `json:"dewpoint"`
	ApparentTemperature      *float64  `json:"apparent_temperature"`
	PrecipitationProbability *float64  `json:"precipitation_probability"`
	Precipitation            *float64  `json:"precipitation"`
	Rain                     *float64  `json:"rain"`
	Showers                  *float64  `json:"showers"`
	Snowfall                 *float64  `json:"snowfall"`
	SnowDepth                *float64  `json:"snow_depth"`
}

// ArchiveResponse represents historical weather data from the Open-Meteo archive API
type ArchiveResponse struct {
	Latitude             float64           `json:"latitude"`
	Longitude            float64           `json:"longitude"`
	Elevation            float64           `json:"elevation"`
	Timezone             string            `json:"timezone"`
	TimezoneAbbreviation string            `json:"timezone_abbreviation"`
	UTCOffsetSeconds     int               `json:"utc_offset_seconds"`
	GenerationTimeMs     float64           `json:"generation_time_ms"`
	HourlyUnits          map[string]string `json:"hourly_units"`
	Hourly               Hourly            `json:"hourly"`
}

// Hourly holds the parallel hourly series. A series that the upstream left out
// of the response decodes to nil; individual null entries decode to nil pointers.
type Hourly struct {
	Time                     []string   `json:"time"`
	Temperature2m            []*float64 `json:"temperature_2m"`
	RelativeHumidity2m       []*float64 `json:"relative_humidity_2m"`
	DewPoint2m               []*float64 `json:"dew_point_2m"`
	ApparentTemperature      []*float64 `json:"apparent_temperature"`
	PrecipitationProbability []*float64 `json:"precipitation_probability"`
	Precipitation            []*float64 `json:"precipitation"`
	Rain                     []*float64 `json:"rain"`
	Showers                  []*float64 `json:"showers"`
	Snowfall                 []*float64 `json:"snowfall"`
	SnowDepth                []*float64 `json:"snow_depth"`
}

// Series returns every measurement series keyed by its upstream variable name.
func (h Hourly) Series() map[string][]*float64 {
	return map[string][]*float64{
		"temperature_2m":            h.Temperature2m,
		"relative_humidity_2m":      h.RelativeHumidity2m,
		"dew_point_2m":              h.DewPoint2m,
		"apparent_temperature":      h.ApparentTemperature,
		"precipitation_probability": h.PrecipitationProbability,
		"precipitation":             h.Precipitation,
		"rain":                      h.Rain,
		"showers":                   h.Showers,
		"snowfall":                  h.Snowfall,
		"snow_depth":                h.SnowDepth,
	}
}

// ValueAt returns the i-th entry of a series, or nil when the series is absent
// or shorter than i.
func ValueAt(series []*float64, i int) *float64 {
	if i < 0 || i >= len(series) {
		return nil
	}
	return series[i]
}
