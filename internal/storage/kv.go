// Package storage persists session state in a small local key-value store.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	// ErrNotFound is returned by KV.Get for keys that were never written.
	ErrNotFound = errors.New("key not found")

	// ErrUnsupportedVersion is returned when persisted chats were written
	// by a newer schema than this build understands.
	ErrUnsupportedVersion = errors.New("unsupported chat schema version")
)

// KV is a durable string-keyed byte store. Set replaces the whole value
// atomically: a reader sees either the old or the new value, never a mix.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Close() error
}

// Store kinds accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
)

// DatabaseFile is the SQLite file name inside the data directory.
const DatabaseFile = "ragchat.db"

// Open creates the KV backend named by kind inside dataDir.
func Open(kind, dataDir string) (KV, error) {
	switch kind {
	case "", KindFile:
		return NewFileKV(filepath.Join(dataDir, "state"))
	case KindSQLite:
		return OpenSQLite(filepath.Join(dataDir, DatabaseFile))
	default:
		return nil, fmt.Errorf("unknown store %q (want %s or %s)", kind, KindFile, KindSQLite)
	}
}
