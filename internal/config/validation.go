package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Common weak/default passwords and secrets to check for
var weakPasswords = []string{
	"password",
	"secret",
	"changeme",
	"admin",
	"root",
	"postgres",
	"123456",
	"12345678",
	"qwerty",
	"abc123",
	"default",
	"guest",
}

// ValidateForProduction validates that configuration is suitable for production use.
// It checks for insecure settings, weak secrets, and development configurations
// that should never be used in production environments.
func ValidateForProduction(cfg *Config) error {
	var errors []string

	if err := validateEnvironment(cfg); err != nil {
		errors = append(errors, err.Error())
	}

	if err := validateDatabase(cfg); err != nil {
		errors = append(errors, err.Error())
	}

	if err := validateCORS(cfg); err != nil {
		errors = append(errors, err.Error())
	}

	if err := validateWebSocket(cfg); err != nil {
		errors = append(errors, err.Error())
	}

	logProductionWarnings(cfg)

	if len(errors) > 0 {
		return fmt.Errorf("production configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	slog.Info("production configuration validated successfully")
	return nil
}

func validateEnvironment(cfg *Config) error {
	if cfg.Server.Env != "production" {
		return fmt.Errorf("APP_ENV must be 'production' in production deployment, got: %s", cfg.Server.Env)
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	var errors []string

	if isWeakPassword(cfg.Database.Password) {
		errors = append(errors, "weak or default database password detected")
	}

	if cfg.Database.SSLMode == "disable" {
		errors = append(errors, "database SSL must be enabled in production (use 'require', 'verify-ca', or 'verify-full')")
	}

	if cfg.Database.Host == "" || containsLocalhostURL(cfg.Database.Host) {
		errors = append(errors, "database host appears to be localhost or empty - use production database host")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

func validateCORS(cfg *Config) error {
	for _, origin := range cfg.CORS.AllowedOrigins {
		if containsLocalhostURL(origin) {
			return fmt.Errorf("localhost origin %q allowed by CORS - restrict to production origins", origin)
		}
	}
	return nil
}

func validateWebSocket(cfg *Config) error {
	for _, origin := range cfg.WebSocket.AllowedOrigins {
		if containsLocalhostURL(origin) {
			return fmt.Errorf("localhost origin %q allowed for websocket connections - restrict to production origins", origin)
		}
	}
	return nil
}

func logProductionWarnings(cfg *Config) {
	if !cfg.Observability.MetricsEnabled {
		slog.Warn("metrics collection is disabled - consider enabling for production monitoring")
	}

	if !cfg.SecurityHeader.EnableHSTS {
		slog.Warn("HSTS is disabled - consider enabling for production traffic served over TLS")
	}
}

// isWeakPassword checks if a password matches common weak passwords or patterns
func isWeakPassword(password string) bool {
	if password == "" {
		return true
	}

	if len(password) < 8 {
		return true
	}

	lowerPassword := strings.ToLower(password)
	for _, weak := range weakPasswords {
		if lowerPassword == weak {
			return true
		}
	}

	return false
}

// containsLocalhostURL checks if a URL or host string contains localhost references
func containsLocalhostURL(url string) bool {
	if url == "" {
		return false
	}

	lowerURL := strings.ToLower(url)

	if strings.Contains(lowerURL, "localhost") {
		return true
	}

	if strings.Contains(lowerURL, "127.0.0.1") || strings.Contains(lowerURL, "0.0.0.0") {
		return true
	}

	if strings.Contains(lowerURL, "::1") || strings.Contains(lowerURL, "[::1]") {
		return true
	}

	return false
}
