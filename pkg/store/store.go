// Package store persists small device-local state as JSON blobs under fixed
// keys, the way the mobile app keeps its preferences.
package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// Keys of the persisted blobs.
const (
	KeyAccessibility = "vi_prefs_accessibility_v1"
	KeyUsageStats    = "vi_usage_stats_v1"
	KeyContacts      = "safety_contacts_v1"
	KeyMyInfo        = "safety_myinfo_v1"
	KeyToken         = "auth:token"
	KeyBioEnabled    = "auth:bio:enabled"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")

	// ErrInvalidPatch is returned when a preferences patch cannot be
	// decoded.
	ErrInvalidPatch = errors.New("store: invalid patch")
)

// KV is a string key-value store. Get reports ok=false for missing keys.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open picks the backend from path: "" is in-memory, a .json file is a
// JSONFile and anything else is a SQLite database.
func Open(path string) (KV, error) {
	switch {
	case path == "":
		return NewMemory(), nil
	case strings.EqualFold(filepath.Ext(path), ".json"):
		return NewJSONFile(path)
	default:
		return OpenSQLite(path)
	}
}
