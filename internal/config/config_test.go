package config_test

import (
	"testing"

	"github.com/ignatij/apipulse/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := config.FromEnv(envOf(nil))
	assert.Equal(t, config.DefaultPort, cfg.Port)
	assert.Equal(t, config.DefaultJWTAudience, cfg.JWTAudience)
	assert.Equal(t, config.DefaultCORSOrigin, cfg.CORSAllowedOrigin)
	assert.Error(t, cfg.ValidateServer())
}

func TestDBConnString(t *testing.T) {
	t.Run("PrefersDBURL", func(t *testing.T) {
		cfg := config.FromEnv(envOf(map[string]string{
			"DB_URL":  "postgres://u:p@db:5432/pulse",
			"DB_HOST": "ignored",
		}))
		conn, err := cfg.DBConnString()
		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@db:5432/pulse", conn)
	})

	t.Run("BuildsFromParts", func(t *testing.T) {
		cfg := config.FromEnv(envOf(map[string]string{
			"DB_USERNAME": "u",
			"DB_PASSWORD": "p",
			"DB_HOST":     "localhost",
			"DB_PORT":     "5432",
			"DB_NAME":     "pulse",
		}))
		conn, err := cfg.DBConnString()
		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@localhost:5432/pulse?sslmode=disable", conn)
	})

	t.Run("IncompleteParts", func(t *testing.T) {
		cfg := config.FromEnv(envOf(map[string]string{"DB_HOST": "localhost"}))
		_, err := cfg.DBConnString()
		assert.Error(t, err)
	})
}

func TestValidateServer(t *testing.T) {
	cfg := config.FromEnv(envOf(map[string]string{
		"AUTH_JWT_SECRET":  "secret",
		"SERVICE_ROLE_KEY": "service",
	}))
	assert.NoError(t, cfg.ValidateServer())

	cfg.ServiceRoleKey = ""
	assert.Error(t, cfg.ValidateServer())
}
