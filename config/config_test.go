package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Contains(t, cfg.DatabaseURL, "host=db")
	assert.Equal(t, "osrm", cfg.RoutingProvider)
	assert.Equal(t, 10*time.Second, cfg.RoutingTimeout)
	assert.Equal(t, 5*time.Minute, cfg.PositionRetention)
	assert.Equal(t, 500.0, cfg.Tunables.CandidateRadius)
	assert.Equal(t, 3, cfg.Tunables.UpcomingStops)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE", "memory")
	t.Setenv("ROUTING_PROVIDER", "none")
	t.Setenv("POSITION_RETENTION_SEC", "120")
	t.Setenv("NEXT_STOP_RADIUS_M", "350")
	t.Setenv("PASSED_WINDOW_SEC", "300")
	t.Setenv("UPCOMING_STOPS", "5")
	t.Setenv("S3_ENDPOINT", "https://example.r2.dev")
	t.Setenv("S3_BUCKET", "archive")
	t.Setenv("S3_ACCESS_KEY_ID", "id")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 2*time.Minute, cfg.PositionRetention)
	assert.Equal(t, 350.0, cfg.Tunables.CandidateRadius)
	assert.Equal(t, 5*time.Minute, cfg.Tunables.PassedWindow)
	assert.Equal(t, 5, cfg.Tunables.UpcomingStops)
	assert.True(t, cfg.ArchiveEnabled())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"bad store", map[string]string{"STORE": "sqlite"}},
		{"bad provider", map[string]string{"ROUTING_PROVIDER": "valhalla"}},
		{"graphhopper without key", map[string]string{"ROUTING_PROVIDER": "graphhopper", "GRAPHHOPPER_API_KEY": ""}},
		{"negative retention", map[string]string{"POSITION_RETENTION_SEC": "-5"}},
		{"non numeric radius", map[string]string{"NEXT_STOP_RADIUS_M": "far"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"bad tz", map[string]string{"TZ": "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "test-secret")
			t.Setenv("STORE", "memory")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
