package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"venueweather/internal/metrics"
	"venueweather/internal/models"

	_ "github.com/go-sql-driver/mysql"
)

// ErrVenueNotFound is returned when no venue has the requested id
var ErrVenueNotFound = errors.New("venue not found")

// wallClockLayout stores the venue-local wall clock; the zone lives in its own columns
const wallClockLayout = "2006-01-02 15:04:05"

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema
// dsn format: "username:password@tcp(host:port)/dbname?parseTime=true"
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	if err := db.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// NewDBFromConn wraps an already opened pool without touching the schema
func NewDBFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// initSchema creates the venues and weather_data tables when missing
func (db *DB) initSchema(ctx context.Context) error {
	// MySQL doesn't support multiple statements in one Exec, so we need to split them
	statements := []string{
		`CREATE TABLE IF NOT EXISTS venues (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS weather_data (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			venue_id BIGINT NOT NULL,
			date DATETIME NOT NULL,
			utc_offset_seconds INT NOT NULL DEFAULT 0,
			timezone VARCHAR(64) NOT NULL DEFAULT '',
			temperature DOUBLE NULL,
			relative_humidity DOUBLE NULL,
			dewpoint DOUBLE NULL,
			apparent_temperature DOUBLE NULL,
			precipitation_probability DOUBLE NULL,
			precipitation DOUBLE NULL,
			rain DOUBLE NULL,
			showers DOUBLE NULL,
			snowfall DOUBLE NULL,
			snow_depth DOUBLE NULL,
			INDEX idx_weather_data_venue_date (venue_id, date),
			CONSTRAINT fk_weather_data_venue FOREIGN KEY (venue_id) REFERENCES venues (id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// Ping checks that the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *DB) updateConnectionStats() {
	stats := db.conn.Stats()
	metrics.UpdateDBConnectionStats(stats.OpenConnections, stats.InUse, stats.Idle)
}

// Session is a single connection reserved for one request.
// Callers must Close it on every path.
type Session struct {
	db   *DB
	conn *sql.Conn
}

// Session reserves a connection from the pool
func (db *DB) Session(ctx context.Context) (*Session, error) {
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	db.updateConnectionStats()
	return &Session{db: db, conn: conn}, nil
}

// Close returns the connection to the pool
func (s *Session) Close() error {
	defer s.db.updateConnectionStats()
	return s.conn.Close()
}

// GetVenue retrieves a venue by id. It returns ErrVenueNotFound when the id is unknown.
func (s *Session) GetVenue(ctx context.Context, id int64) (*models.Venue, error) {
	query := `SELECT id, name, latitude, longitude FROM venues WHERE id = ? LIMIT 1`

	var (
		venue models.Venue
		name  sql.NullString
	)

	queryStart := time.Now()
	err := s.conn.QueryRowContext(ctx, query, id).Scan(&venue.ID, &name, &venue.Latitude, &venue.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("SELECT", "venues", time.Since(queryStart), nil)
		return nil, ErrVenueNotFound
	}
	metrics.RecordDBQuery("SELECT", "venues", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query venue %d: %w", id, err)
	}

	venue.Name = name.String
	return &venue, nil
}

// InsertObservations writes all observations in one transaction and returns
// how many rows were committed. Either every row is durable or none is.
func (s *Session) InsertObservations(ctx context.Context, observations []models.WeatherObservation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO weather_data (venue_id, date, utc_offset_seconds, timezone,
			temperature, relative_humidity, dewpoint, apparent_temperature, precipitation_probability,
			precipitation, rain, showers, snowfall, snow_depth)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, o := range observations {
			_, offset := o.Date.Zone()

			queryStart := time.Now()
			_, err := stmt.ExecContext(ctx,
				o.VenueID, o.Date.Format(wallClockLayout), offset, o.Date.Location().String(),
				o.Temperature, o.RelativeHumidity, o.Dewpoint, o.ApparentTemperature, o.PrecipitationProbability,
				o.Precipitation, o.Rain, o.Showers, o.Snowfall, o.SnowDepth,
			)
			metrics.RecordDBQuery("INSERT", "weather_data", time.Since(queryStart), err)
			if err != nil {
				return fmt.Errorf("failed to insert observation for venue %d at %s: %w",
					o.VenueID, o.Date.Format(time.RFC3339), err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(observations), nil
}

// withTx runs fn inside a transaction on the session's connection. The
// transaction is committed when fn succeeds and rolled back on error or panic.
func (s *Session) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	commitStart := time.Now()
	err = tx.Commit()
	metrics.RecordDBQuery("COMMIT", "weather_data", time.Since(commitStart), err)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
