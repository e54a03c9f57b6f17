package util

import (
	"os"
	"strconv"
)

// Getenv returns the value of the named environment variable or defaultValue when it is unset or empty.
func Getenv(name, defaultValue string) string {
	value := os.Getenv(name)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetenvBool parses the named variable as a bool, falling back to defaultValue
// when it is unset or not a valid bool.
func GetenvBool(name string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(name))
	if err != nil {
		return defaultValue
	}
	return value
}
