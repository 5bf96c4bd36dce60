// Package id provides ULID generation for the micro-app host.
//
// IDs are prefixed ULIDs:
//   - app_*: a mounted application instance
//   - inline_*: the resource-map key of an inline script, which has no URL
//
// ULIDs sort by creation time, so listing instances by ID lists them in
// mount order.
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

// ============================================================================
// Typed IDs
// ============================================================================

// AppID identifies a mounted application instance
type AppID string

// String returns the raw ID
func (id AppID) String() string { return string(id) }

const (
	AppPrefix    = "app"
	InlinePrefix = "inline"
)

// ============================================================================
// Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropyMu sync.Mutex // guards entropy
	entropy   io.Reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand. IDs from one
// generator are strictly increasing, even within a millisecond.
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewAppID generates a new application instance ID
func NewAppID() AppID {
	return AppID(Default().GenerateWithPrefix(AppPrefix))
}

// NewInlineKey generates a resource-map key for an inline script
func NewInlineKey() string {
	return Default().GenerateWithPrefix(InlinePrefix)
}

// ============================================================================
// Validation
// ============================================================================

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// ParseAppID validates a prefixed application ID
func ParseAppID(raw string) (AppID, error) {
	prefix, body, ok := strings.Cut(raw, "_")
	if !ok || prefix != AppPrefix {
		return "", fmt.Errorf("invalid app id %q: missing %q prefix", raw, AppPrefix+"_")
	}
	if !IsValid(body) {
		return "", fmt.Errorf("invalid app id %q: malformed ULID", raw)
	}
	return AppID(raw), nil
}

// Timestamp extracts the creation time from a prefixed or bare ULID
func Timestamp(raw string) (time.Time, error) {
	if _, body, ok := strings.Cut(raw, "_"); ok {
		raw = body
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
