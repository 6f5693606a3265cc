package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything read from the environment at startup.
type Config struct {
	Port          string
	DBPath        string
	JWTSecret     string
	AdminJoinCode string
	UploadDir     string
	LogLevel      string
}

// Load reads a .env file if present (never overwriting variables already set
// in the environment) and assembles the configuration.
func Load() (Config, error) {
	if envMap, err := godotenv.Read(); err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	cfg := Config{
		Port:          getenv("TASKPAY_PORT", "8080"),
		DBPath:        getenv("TASKPAY_DB_PATH", "taskpay.db"),
		JWTSecret:     os.Getenv("TASKPAY_JWT_SECRET"),
		AdminJoinCode: os.Getenv("TASKPAY_ADMIN_JOIN_CODE"),
		UploadDir:     getenv("TASKPAY_UPLOAD_DIR", "uploads"),
		LogLevel:      getenv("TASKPAY_LOG_LEVEL", "info"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("TASKPAY_JWT_SECRET is required")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
