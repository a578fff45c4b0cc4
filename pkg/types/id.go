package types

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// idMu guards entropy so that ids minted within the same millisecond still
// sort in creation order.
var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a 26-character lexicographically sortable identifier derived
// from the current time plus randomness. Safe for concurrent use.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy).String()
}

// NowUnixMS returns the current wall-clock time in Unix milliseconds.
func NowUnixMS() int64 {
	return time.Now().UnixMilli()
}

// NowUnixUS returns the current wall-clock time in Unix microseconds.
// Trace events use microsecond resolution.
func NowUnixUS() int64 {
	return time.Now().UnixMicro()
}
