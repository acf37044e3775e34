// Package ulid provides prefixed, sortable identifiers on top of
// github.com/oklog/ulid/v2. Sync passes and knowledge uploads are stamped
// with these IDs so log lines and results can be correlated.
package ulid

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Common prefixes for different parts of the application
const (
	// Prefix for sync pass (run) IDs
	PrefixRun = "run"

	// Prefix for sync pair IDs
	PrefixPair = "pair"

	// Prefix for knowledge-base upload IDs
	PrefixUpload = "up"

	// PrefixSeparator is used to separate the prefix from the ULID
	PrefixSeparator = "-"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// ULID wraps ulid.ULID with an optional prefix.
type ULID struct {
	ulid.ULID
	prefix string
}

// Generate creates a new ULID with the current timestamp.
func Generate() ULID {
	return NewWithTime(time.Now())
}

// GenerateWithPrefix creates a new ULID with the current timestamp and a
// prefix giving context about what the ID represents.
func GenerateWithPrefix(prefix string) ULID {
	id := NewWithTime(time.Now())
	id.prefix = prefix
	return id
}

// NewWithTime creates a new ULID with a specific timestamp.
func NewWithTime(t time.Time) ULID {
	entropyLock.Lock()
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	entropyLock.Unlock()
	return ULID{id, ""}
}

// Parse parses a ULID string, handling both plain and prefixed forms
// (e.g. "run-01AN4Z07BY79KA1307SR9X4MV3").
func Parse(id string) (ULID, error) {
	prefix, raw, found := strings.Cut(id, PrefixSeparator)
	if !found {
		raw = id
		prefix = ""
	}

	parsed, err := ulid.Parse(raw)
	if err != nil {
		return ULID{}, err
	}

	return ULID{parsed, prefix}, nil
}

// Validate checks if a string is a valid plain or prefixed ULID.
func Validate(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Prefix returns the prefix of the ULID.
func (u ULID) Prefix() string {
	return u.prefix
}

// String returns the string representation of the ULID.
// If the ULID has a prefix, it's included in the format "prefix-ulid".
func (u ULID) String() string {
	if u.prefix != "" {
		return u.prefix + PrefixSeparator + u.ULID.String()
	}
	return u.ULID.String()
}

// Time returns the timestamp component of the ULID.
func (u ULID) Time() time.Time {
	return ulid.Time(u.ULID.Time())
}

// RunID generates a new ULID with the run prefix
func RunID() string {
	return GenerateWithPrefix(PrefixRun).String()
}

// PairID generates a new ULID with the pair prefix
func PairID() string {
	return GenerateWithPrefix(PrefixPair).String()
}

// UploadID generates a new ULID with the upload prefix
func UploadID() string {
	return GenerateWithPrefix(PrefixUpload).String()
}
