// Package env reads the handful of settings needed before config.Load runs,
// such as log format and instance identity.
package env

import (
	"os"
	"strings"
)

// Prefix namespaces the service's own variables.
const Prefix = "CROPMARKET_"

// Get returns the trimmed value of key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	return First(fallback, key)
}

// First returns the first non-blank value among keys, in order.
func First(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}

// Prefixed looks up Prefix+name and then the bare name, so platform-provided
// variables like PORT work alongside CROPMARKET_PORT.
func Prefixed(name, fallback string) string {
	return First(fallback, Prefix+name, name)
}
