// Package storage holds what the object store drivers share.
package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by drivers when the object key does not exist.
var ErrNotFound = errors.New("object not found")

// ValidateKey rejects keys that would escape their prefix or address a bucket
// root.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("object key is required")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("object key %q is not allowed", key)
	}
	return nil
}
