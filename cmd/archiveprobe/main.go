package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"venueweather/internal/api"
	"venueweather/internal/ingest"
	"venueweather/internal/logger"

	"go.uber.org/zap"
)

// archiveprobe fetches archive data for a coordinate and prints what an
// ingestion would store, without touching the database.
func main() {
	lat := flag.Float64("lat", 40.0, "latitude")
	lon := flag.Float64("lon", -75.0, "longitude")
	start := flag.String("start", "2023-01-01", "start date (YYYY-MM-DD)")
	end := flag.String("end", "2023-01-01", "end date (YYYY-MM-DD)")
	baseURL := flag.String("base-url", api.DefaultBaseURL, "archive API base URL")
	raw := flag.Bool("raw", false, "print the raw archive response")
	flag.Parse()

	log, err := logger.New("archiveprobe", "warn", os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	client := api.NewArchiveClient(*baseURL, 60*time.Second, log)
	params := api.ArchiveParams{Latitude: *lat, Longitude: *lon, StartDate: *start, EndDate: *end}

	fmt.Println("=== Request ===")
	fmt.Println(client.BuildURL(params))

	resp, err := client.FetchHourly(context.Background(), params)
	if err != nil {
		log.Fatal("archive request failed", zap.Error(err))
	}

	if *raw {
		jsonData, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(jsonData))
	}

	observations, err := ingest.BuildObservations(0, resp)
	if err != nil {
		log.Fatal("response can't be ingested", zap.Error(err))
	}

	fmt.Println("\n=== Hourly Data Summary ===")
	fmt.Printf("Timezone: %s (%s, offset %ds)\n", resp.Timezone, resp.TimezoneAbbreviation, resp.UTCOffsetSeconds)
	fmt.Printf("Rows: %d\n", len(observations))
	series := resp.Hourly.Series()
	for _, name := range api.HourlyVariables {
		if series[name] == nil {
			fmt.Printf("  %-26s absent (stored as NULL)\n", name)
		}
	}
	if len(observations) > 0 {
		first := observations[0]
		fmt.Printf("First hour: %s", first.Date.Format(time.RFC3339))
		if first.Temperature != nil {
			fmt.Printf(" temperature %.1f", *first.Temperature)
		}
		fmt.Println()
	}
}
