// Package config loads runtime settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	DefaultPort        = "8080"
	DefaultJWTAudience = "authenticated"
	DefaultCORSOrigin  = "*"
)

type Config struct {
	DBURL      string
	DBUsername string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	Port      string
	LogLevel  string
	LogFormat string

	JWTSecret      string
	JWTAudience    string
	ServiceRoleKey string

	CORSAllowedOrigin string
}

// Load reads .env if present and then the process environment.
// A missing .env file is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "failed to load .env")
	}
	return FromEnv(os.Getenv), nil
}

// FromEnv builds a Config from getenv, applying defaults.
func FromEnv(getenv func(string) string) Config {
	return Config{
		DBURL:             getenv("DB_URL"),
		DBUsername:        getenv("DB_USERNAME"),
		DBPassword:        getenv("DB_PASSWORD"),
		DBHost:            getenv("DB_HOST"),
		DBPort:            getenv("DB_PORT"),
		DBName:            getenv("DB_NAME"),
		Port:              orDefault(getenv("PORT"), DefaultPort),
		LogLevel:          getenv("LOG_LEVEL"),
		LogFormat:         getenv("LOG_FORMAT"),
		JWTSecret:         getenv("AUTH_JWT_SECRET"),
		JWTAudience:       orDefault(getenv("AUTH_JWT_AUDIENCE"), DefaultJWTAudience),
		ServiceRoleKey:    getenv("SERVICE_ROLE_KEY"),
		CORSAllowedOrigin: orDefault(getenv("CORS_ALLOWED_ORIGIN"), DefaultCORSOrigin),
	}
}

// DBConnString returns DB_URL, or a postgres URL built from the DB_* parts.
func (c Config) DBConnString() (string, error) {
	if c.DBURL != "" {
		return c.DBURL, nil
	}
	if c.DBUsername == "" || c.DBPassword == "" || c.DBHost == "" || c.DBPort == "" || c.DBName == "" {
		return "", errors.New("DB_URL or complete DB_* env vars (DB_USERNAME, DB_PASSWORD, DB_HOST, DB_PORT, DB_NAME) required")
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUsername, c.DBPassword, c.DBHost, c.DBPort, c.DBName), nil
}

// ValidateServer checks the settings the HTTP server cannot run without.
func (c Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	if c.ServiceRoleKey == "" {
		return errors.New("SERVICE_ROLE_KEY is required")
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
