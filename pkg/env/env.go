// Package env holds the few process-level lookups that sit outside the
// envconfig-driven config, such as log format and instance identity.
package env

import (
	"os"
	"strings"
)

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	return First(fallback, key)
}

// First returns the first non-blank value among keys, or fallback.
func First(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}

// InstanceID names this process in logs: COOWN_INSTANCE_ID, then the
// platform's DYNO, then the host name.
func InstanceID() string {
	if id := First("", "COOWN_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
