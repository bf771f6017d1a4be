package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"bus-tracker/algo"
)

type Config struct {
	Port      string
	JWTSecret string
	TokenTTL  time.Duration

	// Store selects the backend: "postgres" or "memory".
	Store       string
	DatabaseURL string
	SeedFile    string
	RingSize    int

	RoutingProvider   string // osrm | graphhopper | none
	OSRMURL           string
	GraphHopperURL    string
	GraphHopperAPIKey string
	RoutingTimeout    time.Duration
	RouteCacheTTL     time.Duration
	RouteCacheSize    int

	NATSURL     string
	MetricsAddr string

	PositionRetention time.Duration
	Tunables          algo.Tunables

	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3Region          string
	ArchiveAfter      time.Duration
	ArchiveInterval   time.Duration

	LogLevel  string
	LogFormat string
	Location  *time.Location
}

// ArchiveEnabled reports whether every setting the archiver needs is present.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Endpoint != "" && c.S3Bucket != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getenvDefault("PORT", "8080"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		Store:             strings.ToLower(getenvDefault("STORE", "postgres")),
		SeedFile:          getenvDefault("SEED_FILE", "seed.json"),
		RoutingProvider:   strings.ToLower(getenvDefault("ROUTING_PROVIDER", "osrm")),
		OSRMURL:           getenvDefault("OSRM_URL", "https://router.project-osrm.org"),
		GraphHopperURL:    getenvDefault("GRAPHHOPPER_URL", "https://graphhopper.com/api/1"),
		GraphHopperAPIKey: os.Getenv("GRAPHHOPPER_API_KEY"),
		NATSURL:           os.Getenv("NATS_URL"),
		MetricsAddr:       os.Getenv("METRICS_ADDR"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          getenvDefault("S3_REGION", "auto"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		LogFormat:         strings.ToLower(getenvDefault("LOG_FORMAT", "text")),
		Tunables:          algo.DefaultTunables(),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	switch cfg.Store {
	case "postgres":
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			// fall back to discrete DB_* vars
			cfg.DatabaseURL = fmt.Sprintf(
				"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
				getenvDefault("DB_HOST", "localhost"),
				getenvDefault("DB_USER", "bustracker"),
				getenvDefault("DB_PASSWORD", "bustracker"),
				getenvDefault("DB_NAME", "bustracker"),
				getenvDefault("DB_PORT", "5432"),
				getenvDefault("DB_SSLMODE", "disable"),
			)
		}
	case "memory":
	default:
		return nil, fmt.Errorf("invalid STORE: %q", cfg.Store)
	}

	switch cfg.RoutingProvider {
	case "osrm", "graphhopper", "none":
	default:
		return nil, fmt.Errorf("invalid ROUTING_PROVIDER: %q", cfg.RoutingProvider)
	}
	if cfg.RoutingProvider == "graphhopper" && cfg.GraphHopperAPIKey == "" {
		return nil, errors.New("GRAPHHOPPER_API_KEY must be set when ROUTING_PROVIDER=graphhopper")
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT: %q", cfg.LogFormat)
	}

	var err error
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL_HOURS", time.Hour, 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RingSize, err = intEnv("RING_SIZE", 512); err != nil {
		return nil, err
	}
	if cfg.RoutingTimeout, err = durationEnv("ROUTING_TIMEOUT_SEC", time.Second, 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RouteCacheTTL, err = durationEnv("ROUTE_CACHE_TTL_SEC", time.Second, time.Hour); err != nil {
		return nil, err
	}
	if cfg.RouteCacheSize, err = intEnv("ROUTE_CACHE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.PositionRetention, err = durationEnv("POSITION_RETENTION_SEC", time.Second, 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ArchiveAfter, err = durationEnv("ARCHIVE_AFTER_HOURS", time.Hour, 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ArchiveInterval, err = durationEnv("ARCHIVE_INTERVAL_MIN", time.Minute, time.Hour); err != nil {
		return nil, err
	}

	if err := loadTunables(&cfg.Tunables); err != nil {
		return nil, err
	}

	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// loadTunables overrides engine thresholds from the environment.
func loadTunables(t *algo.Tunables) error {
	var err error
	if t.CandidateRadius, err = floatEnv("NEXT_STOP_RADIUS_M", t.CandidateRadius); err != nil {
		return err
	}
	if t.PassedRadius, err = floatEnv("PASSED_RADIUS_M", t.PassedRadius); err != nil {
		return err
	}
	if t.PassedWindow, err = durationEnv("PASSED_WINDOW_SEC", time.Second, t.PassedWindow); err != nil {
		return err
	}
	if t.DefaultVelocity, err = floatEnv("DEFAULT_VELOCITY_MPS", t.DefaultVelocity); err != nil {
		return err
	}
	if t.UpcomingStops, err = intEnv("UPCOMING_STOPS", t.UpcomingStops); err != nil {
		return err
	}
	if t.DistanceWeight, err = floatEnv("SCORE_DISTANCE_WEIGHT", t.DistanceWeight); err != nil {
		return err
	}
	if t.AlignmentWeight, err = floatEnv("SCORE_ALIGNMENT_WEIGHT", t.AlignmentWeight); err != nil {
		return err
	}
	if t.PassedPenalty, err = floatEnv("SCORE_PASSED_PENALTY", t.PassedPenalty); err != nil {
		return err
	}
	return nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// intEnv parses a positive integer.
func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

// floatEnv parses a positive float.
func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

// durationEnv parses a positive integer count of unit.
func durationEnv(key string, unit, def time.Duration) (time.Duration, error) {
	n, err := intEnv(key, 0)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return def, nil
	}
	return time.Duration(n) * unit, nil
}
