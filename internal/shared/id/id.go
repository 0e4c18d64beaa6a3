// Package id provides centralized ID generation for the gateway.
//
// All identities are ULIDs with a type-specific prefix (conn_*, req_*,
// evt_*). ULIDs are lexicographically sortable, so connection and request
// logs order by creation time without extra bookkeeping, and a prefix makes
// an identity readable in logs without consulting its origin.
//
// Connection identities are never reused for the lifetime of the process:
// the timestamp component advances every millisecond and the entropy
// component makes collisions within one millisecond vanishingly unlikely.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ConnID identifies a registered socket connection.
type ConnID string

// RequestID identifies one dispatched message or HTTP request.
type RequestID string

// EventID identifies an inbound webhook event.
type EventID string

// Prefixes for each ID domain.
const (
	ConnPrefix    = "conn"
	RequestPrefix = "req"
	EventPrefix   = "evt"
)

// Generator produces prefixed ULIDs from a single entropy source.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // ulid readers are not safe for concurrent use
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator backed by crypto/rand.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator(rand.Reader)
	})
	return defaultGenerator
}

// NewGenerator creates a generator with the given entropy source.
// Tests pass a deterministic reader.
func NewGenerator(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new raw ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a "<prefix>_<ULID>" string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewConnID generates a connection identity.
func NewConnID() ConnID {
	return ConnID(Default().GenerateWithPrefix(ConnPrefix))
}

// NewRequestID generates a request identity.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewEventID generates a webhook event identity.
func NewEventID() EventID {
	return EventID(Default().GenerateWithPrefix(EventPrefix))
}

func (id ConnID) String() string    { return string(id) }
func (id RequestID) String() string { return string(id) }
func (id EventID) String() string   { return string(id) }

// Parse splits a prefixed identity into its prefix and ULID.
func Parse(s string) (prefix string, u ulid.ULID, err error) {
	i := strings.IndexByte(s, '_')
	if i <= 0 || i == len(s)-1 {
		return "", ulid.ULID{}, fmt.Errorf("id %q: missing prefix", s)
	}
	u, err = ulid.Parse(s[i+1:])
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("id %q: %w", s, err)
	}
	return s[:i], u, nil
}

// IsValid reports whether s is a well-formed prefixed identity.
func IsValid(s string) bool {
	_, _, err := Parse(s)
	return err == nil
}

// Timestamp extracts the creation time embedded in a prefixed identity.
func Timestamp(s string) (time.Time, error) {
	_, u, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
