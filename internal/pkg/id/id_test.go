package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsMonotonic(t *testing.T) {
	prev := New()
	assert.True(t, Valid(prev))
	for i := 0; i < 1000; i++ {
		next := New()
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := RoomCode()
		assert.Len(t, code, 8)
		assert.False(t, seen[code], "duplicate room code %s", code)
		seen[code] = true
	}
	assert.False(t, Valid("not-a-ulid"))
}
