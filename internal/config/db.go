package config

import "fmt"

const defaultDSN = "venueweather:venueweather@tcp(localhost:3306)/venueweather?parseTime=true"

// DatabaseConfig holds the MySQL connection parameters
type DatabaseConfig struct {
	User     string `yaml:"user" envconfig:"DB_USER"`
	Password string `yaml:"password" envconfig:"DB_PASSWORD"`
	Host     string `yaml:"host" envconfig:"DB_HOST"`
	Port     string `yaml:"port" envconfig:"DB_PORT"`
	Name     string `yaml:"name" envconfig:"DB_NAME"`
	RawDSN   string `yaml:"dsn" envconfig:"DATABASE_DSN"`
}

// DSN returns the database connection string
// Individual connection parameters win when all of them are set, then an explicit DSN, then a local default
func (c DatabaseConfig) DSN() string {
	if c.User != "" && c.Password != "" && c.Host != "" && c.Port != "" && c.Name != "" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", c.User, c.Password, c.Host, c.Port, c.Name)
	}

	if c.RawDSN != "" {
		return c.RawDSN
	}

	return defaultDSN
}
