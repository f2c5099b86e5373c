package cache

import (
	"errors"
	"time"

	"github.com/chifron/chifron/internal/tts"
)

// Common errors for store operations
var (
	// ErrNoSynthesizer is returned by Open when Options.Synthesizer is nil
	ErrNoSynthesizer = errors.New("artifact store requires a synthesizer")

	// ErrNotFound is returned by Lookup for an unknown digest
	ErrNotFound = errors.New("artifact not found")
)

// Entry describes one stored artifact. Its identity is Digest; entries are
// never mutated or removed once written.
type Entry struct {
	Digest    string    `json:"digest"`
	Filename  string    `json:"filename"`
	Path      string    `json:"-"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Options configures a Store.
type Options struct {
	// Dir holds the artifacts. Created if missing.
	Dir string

	// Synthesizer produces audio on a miss (required)
	Synthesizer tts.Synthesizer

	// Language tag passed to every synthesis (default "fr")
	Language string

	// SynthesisTimeout bounds one synthesis independently of the callers
	// waiting on it (default 30s)
	SynthesisTimeout time.Duration
}

// Stats holds store counters.
type Stats struct {
	// Current state
	ItemCount int64 `json:"item_count"`
	Size      int64 `json:"size_bytes"`

	// Resolve outcomes
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Syntheses   int64   `json:"syntheses"`
	SharedWaits int64   `json:"shared_waits"` // Resolves served by another caller's synthesis
	Failures    int64   `json:"failures"`
	HitRate     float64 `json:"hit_rate"`

	BytesWritten int64     `json:"bytes_written"`
	LastWrite    time.Time `json:"last_write,omitzero"`
}

// DefaultOptions returns options with defaults for everything but Dir and
// Synthesizer.
func DefaultOptions() Options {
	return Options{
		Language:         "fr",
		SynthesisTimeout: 30 * time.Second,
	}
}
