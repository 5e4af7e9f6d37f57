package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/avenlake/hazardwatch/internal/models"
)

type Config struct {
	Server  ServerConfig
	Worker  WorkerConfig
	Sources SourcesConfig
	Geocode GeocodeConfig
	Risk    RiskConfig
	DB      DatabaseConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	RateLimitRPS   int
	RateLimitBurst int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type SourcesConfig struct {
	SeismicEnabled      bool
	SeismicURL          string
	SeismicMinMagnitude float64
	WeatherEnabled      bool
	WeatherURL          string
	AdminEnabled        bool
	AdapterTimeout      time.Duration
	RefreshInterval     time.Duration
	VerifyInterval      time.Duration

	// HomeLat/HomeLon anchor point-scoped feeds when a caller does not
	// supply a location of its own.
	HomeLat float64
	HomeLon float64
}

type GeocodeConfig struct {
	URL       string
	Timeout   time.Duration
	CacheSize int
}

// RiskConfig holds the thresholds the verifier applies when deciding
// whether an alert threatens a tracked person's location.
type RiskConfig struct {
	QuakeMagnitude    float64
	WeatherSeverities []models.Severity
	RadiusKm          float64
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "localhost"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS:   getEnvInt("SERVER_RATELIMIT_RPS", 5),
			RateLimitBurst: getEnvInt("SERVER_RATELIMIT_BURST", 10),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 4),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 32),
		},
		Sources: SourcesConfig{
			SeismicEnabled:      getEnvBool("SEISMIC_ENABLED", true),
			SeismicURL:          getEnv("SEISMIC_URL", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary"),
			SeismicMinMagnitude: getEnvFloat("SEISMIC_MIN_MAGNITUDE", 2.5),
			WeatherEnabled:      getEnvBool("WEATHER_ENABLED", true),
			WeatherURL:          getEnv("WEATHER_URL", ""),
			AdminEnabled:        getEnvBool("ADMIN_ENABLED", true),
			AdapterTimeout:      getEnvDuration("ADAPTER_TIMEOUT", 15*time.Second),
			RefreshInterval:     getEnvDuration("REFRESH_INTERVAL", 45*time.Second),
			VerifyInterval:      getEnvDuration("VERIFY_INTERVAL", 60*time.Second),
			HomeLat:             getEnvFloat("HOME_LAT", 34.0522),
			HomeLon:             getEnvFloat("HOME_LON", -118.2437),
		},
		Geocode: GeocodeConfig{
			URL:       getEnv("GEOCODE_URL", "https://nominatim.openstreetmap.org"),
			Timeout:   getEnvDuration("GEOCODE_TIMEOUT", 5*time.Second),
			CacheSize: getEnvInt("GEOCODE_CACHE_SIZE", 256),
		},
		Risk: RiskConfig{
			QuakeMagnitude:    getEnvFloat("RISK_QUAKE_MAGNITUDE", 5.0),
			WeatherSeverities: getEnvSeverities("RISK_WEATHER_SEVERITIES", []models.Severity{models.SeverityHigh, models.SeveritySevere}),
			RadiusKm:          getEnvFloat("RISK_RADIUS_KM", 500),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/hazardwatch.db"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("rate limit rps must be at least 1: %d", c.Server.RateLimitRPS)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Sources.RefreshInterval < 10*time.Second {
		return fmt.Errorf("refresh interval must be at least 10 seconds")
	}
	if c.Sources.VerifyInterval < 10*time.Second {
		return fmt.Errorf("verify interval must be at least 10 seconds")
	}
	if c.Risk.RadiusKm <= 0 {
		return fmt.Errorf("risk radius must be positive: %f", c.Risk.RadiusKm)
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1: %d", c.Worker.Count)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSeverities(key string, fallback []models.Severity) []models.Severity {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []models.Severity
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, models.ParseSeverity(part))
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
