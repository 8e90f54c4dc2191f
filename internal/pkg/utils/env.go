package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/monngon/feed-service/internal/pkg/log"
)

// EnvVar returns the value of a required environment variable and stops the
// process when it is missing.
func EnvVar(name string) string {
	value, ok := os.LookupEnv(name)
	if !ok {
		log.Fatalf("missing required environment variable: %s", name)
	}
	return value
}

func EnvVarDefault(name string, defaultValue string) string {
	value, ok := os.LookupEnv(name)
	if !ok {
		return defaultValue
	}
	return value
}

func EnvVarIntDefault(name string, defaultValue int) int {
	value, ok := os.LookupEnv(name)
	if !ok {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Error("unable to parse int environment variable, using default", name+"="+value)
		return defaultValue
	}
	return parsed
}

func EnvVarDurationDefault(name string, unit time.Duration, defaultValue time.Duration) time.Duration {
	value, ok := os.LookupEnv(name)
	if !ok {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Error("unable to parse duration environment variable, using default", name+"="+value)
		return defaultValue
	}
	return time.Duration(parsed) * unit
}
