// Package config loads server configuration from flags, environment
// variables and a .env file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration.
type Config struct {
	Environment string
	LogLevel    string

	Port        int
	DBPath      string
	CORSOrigins []string

	// PolicyPath is an optional loan policy JSON document.
	PolicyPath string

	GatewayTimeout time.Duration
	GatewayRPS     float64

	// OverdueInterval is how often overdue loans are swept; 0 disables.
	OverdueInterval time.Duration

	// SeedSample loads the sample catalog on startup.
	SeedSample bool
}

// Load builds a Config with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("library-server", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	port := fs.String("port", "", "HTTP server port (default: 8080)")
	dbPath := fs.String("db", "", "SQLite database path, \":memory:\" for in-memory (default: library.db)")
	policyPath := fs.String("policy", "", "Loan policy JSON file (default: built-in policy)")
	gatewayTimeout := fs.String("gateway-timeout", "", "Payment gateway call timeout (default: 10s)")
	gatewayRPS := fs.String("gateway-rps", "", "Payment gateway calls per second (default: 5)")
	overdueInterval := fs.String("overdue-interval", "", "Overdue sweep interval, 0 disables (default: 1h)")
	seed := fs.String("seed", "", "Load the sample catalog on startup (default: false)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed CORS origins (default: *)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		Environment: getConfigValue(*env, "ENV", "development"),
		LogLevel:    getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		DBPath:      getConfigValue(*dbPath, "LIBRARY_DB", "library.db"),
		PolicyPath:  getConfigValue(*policyPath, "LOAN_POLICY", ""),
		SeedSample:  getBoolConfigValue(*seed, "SEED_SAMPLE", false),
		CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
	}

	portStr := getConfigValue(*port, "PORT", "8080")
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	cfg.Port = p

	timeoutStr := getConfigValue(*gatewayTimeout, "GATEWAY_TIMEOUT", "10s")
	if cfg.GatewayTimeout, err = time.ParseDuration(timeoutStr); err != nil {
		return nil, fmt.Errorf("invalid gateway timeout %q: %w", timeoutStr, err)
	}

	rpsStr := getConfigValue(*gatewayRPS, "GATEWAY_RPS", "5")
	if cfg.GatewayRPS, err = strconv.ParseFloat(rpsStr, 64); err != nil {
		return nil, fmt.Errorf("invalid gateway rps %q: %w", rpsStr, err)
	}

	intervalStr := getConfigValue(*overdueInterval, "OVERDUE_INTERVAL", "1h")
	if cfg.OverdueInterval, err = time.ParseDuration(intervalStr); err != nil {
		return nil, fmt.Errorf("invalid overdue interval %q: %w", intervalStr, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("database path cannot be empty")
	}
	if c.GatewayTimeout < 0 {
		return errors.New("gateway timeout cannot be negative")
	}
	if c.GatewayRPS < 0 {
		return errors.New("gateway rps cannot be negative")
	}
	if c.OverdueInterval < 0 {
		return errors.New("overdue interval cannot be negative")
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments). Variables already
// set in the environment win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- path comes from the operator
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
	return scanner.Err()
}
