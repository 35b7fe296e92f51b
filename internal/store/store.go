package store

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned when a task id has no record.
var ErrNotFound = errors.New("store: task not found")

// Config configures the SQLite-backed task store.
type Config struct {
	// Path is the SQLite database file. Parent directories are created as
	// needed.
	Path string

	// BusyTimeout is applied as the SQLite busy_timeout pragma; 0 means the
	// driver default.
	BusyTimeout time.Duration
}

// NewID returns a random 128-bit hex identifier for new task records.
func NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is unrecoverable for id generation.
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
