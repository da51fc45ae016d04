// Package id generates sortable identifiers for rooms and play sessions.
package id

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	entropyMu sync.Mutex
)

// New returns a new ULID string.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// RoomCode returns a short lowercase room code derived from a new ULID.
// The random tail is used so codes created in the same millisecond differ.
func RoomCode() string {
	s := New()
	return strings.ToLower(s[len(s)-8:])
}

// Valid reports whether s parses as a ULID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
