package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// GetEnvString retrieves a string from environment variables or returns the default value.
func GetEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvInt retrieves an integer from environment variables or returns the default value.
func GetEnvInt(key string, defaultValue int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}

// GetEnvBool retrieves a boolean from environment variables or returns the default value.
func GetEnvBool(key string, defaultValue bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}

	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}

// GetEnvDuration retrieves a duration from environment variables or returns the default value.
// Values with a unit ("90s", "2m") are parsed with time.ParseDuration; bare
// integers are seconds.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}

	if strings.ContainsAny(valStr, "hms") {
		val, err := time.ParseDuration(valStr)
		if err != nil {
			return defaultValue
		}
		return val
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultValue
	}
	return time.Duration(val) * time.Second
}

// GetEnvList splits a comma separated variable, dropping empty entries.
func GetEnvList(key string, defaultValue []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// GetEnvLogLevel retrieves a log level from environment variables or returns the default value.
func GetEnvLogLevel(key string, defaultValue zerolog.Level) zerolog.Level {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}

	level, err := zerolog.ParseLevel(valStr)
	if err != nil {
		return defaultValue
	}
	return level
}
