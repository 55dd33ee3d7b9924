package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	WaitReady         time.Duration // Timeout for all release workloads to become ready
	BucketJob         time.Duration // Timeout for the disposable bucket creation unit
	HealthProbe       time.Duration // Timeout for a single health probe
	Delete            time.Duration // Timeout for PVC and namespace deletion during cleanup
	RetryMaxAttempts  int           // Maximum number of retry attempts for probes
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - COST_ONPREM_TIMEOUT_WAIT_READY (default: 15m)
//   - COST_ONPREM_TIMEOUT_BUCKET_JOB (default: 5m)
//   - COST_ONPREM_TIMEOUT_HEALTH_PROBE (default: 30s)
//   - COST_ONPREM_TIMEOUT_DELETE (default: 5m)
//   - COST_ONPREM_RETRY_MAX_ATTEMPTS (default: 3)
//   - COST_ONPREM_RETRY_INITIAL_DELAY (default: 2s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		WaitReady:         parseDuration("COST_ONPREM_TIMEOUT_WAIT_READY", 15*time.Minute),
		BucketJob:         parseDuration("COST_ONPREM_TIMEOUT_BUCKET_JOB", 5*time.Minute),
		HealthProbe:       parseDuration("COST_ONPREM_TIMEOUT_HEALTH_PROBE", 30*time.Second),
		Delete:            parseDuration("COST_ONPREM_TIMEOUT_DELETE", 5*time.Minute),
		RetryMaxAttempts:  parseInt("COST_ONPREM_RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: parseDuration("COST_ONPREM_RETRY_INITIAL_DELAY", 2*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

// parseBool parses a boolean from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseBool(envVar string, defaultVal bool) bool {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}

	return b
}

// envOr returns the environment variable value or the default when unset.
func envOr(envVar, defaultVal string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultVal
}
