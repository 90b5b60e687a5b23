/*
Package configs is responsible for loading and parsing the application's configuration.

Configuration comes from environment variables, optionally seeded from a local .env
file in development. Only a handful of settings exist: the running environment, the
listen port, the CORS allowed origins, the static asset directory, and the WebSocket
connect rate limit.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig contains all configuration parameters required for the server to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// StaticDir is the directory containing the frontend assets served at "/".
	StaticDir string

	// Security Settings
	AllowedOrigins []string

	// WebSocket connect rate limiting (per client IP).
	ConnectRate  float64
	ConnectBurst int
}

// LoadConfig reads the application configuration from environment variables,
// applying defaults and validating values. A .env file in the working directory is
// loaded first if present; its absence is not an error.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{}

	// Environment
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Port
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "4000"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// StaticDir
	cfg.StaticDir = os.Getenv("STATIC_DIR")
	if cfg.StaticDir == "" {
		cfg.StaticDir = "./public"
	}

	// AllowedOrigins
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr != "" {
		origins := strings.Split(originsStr, ",")
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{}
	}

	// ConnectRate
	rateStr := os.Getenv("CONNECT_RATE")
	if rateStr == "" {
		rateStr = "1"
	}
	connectRate, err := strconv.ParseFloat(rateStr, 64)
	if err != nil || connectRate <= 0 {
		return nil, fmt.Errorf("invalid CONNECT_RATE environment variable: %q", rateStr)
	}
	cfg.ConnectRate = connectRate

	// ConnectBurst
	burstStr := os.Getenv("CONNECT_BURST")
	if burstStr == "" {
		burstStr = "5"
	}
	connectBurst, err := strconv.Atoi(burstStr)
	if err != nil || connectBurst <= 0 {
		return nil, fmt.Errorf("invalid CONNECT_BURST environment variable: %q", burstStr)
	}
	cfg.ConnectBurst = connectBurst

	return cfg, nil
}
