package engines

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chifron/chifron/internal/tts"
)

// MockEngine synthesizes fake MP3 data in-process. It is used for local
// runs without network access and by tests that need to control latency
// and failures.
type MockEngine struct {
	mu      sync.RWMutex
	delay   time.Duration
	failure error
	payload func(text string) []byte

	calls atomic.Int64
}

// MockConfig holds configuration for the mock engine.
type MockConfig struct {
	// Delay simulates synthesis latency
	Delay time.Duration `mapstructure:"delay"`

	// Fail makes every call return an error
	Fail bool `mapstructure:"fail"`
}

// ErrMockFailure is returned when the mock engine is configured to fail.
var ErrMockFailure = errors.New("mock engine failure")

// NewMockEngine creates a new mock engine.
func NewMockEngine(config MockConfig) *MockEngine {
	e := &MockEngine{delay: config.Delay}
	if config.Fail {
		e.failure = ErrMockFailure
	}
	return e
}

// Synthesize returns an ID3-tagged payload derived from text after the
// configured delay.
func (e *MockEngine) Synthesize(ctx context.Context, text string, languageTag string) ([]byte, error) {
	e.calls.Add(1)

	e.mu.RLock()
	delay, failure, payload := e.delay, e.failure, e.payload
	e.mu.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if failure != nil {
		return nil, failure
	}
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}
	if payload != nil {
		return payload(text), nil
	}
	return []byte("ID3" + languageTag + ":" + text), nil
}

// SetDelay changes the simulated latency.
func (e *MockEngine) SetDelay(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = d
}

// SetFailure makes subsequent calls fail with err; nil restores success.
func (e *MockEngine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failure = err
}

// SetPayload overrides the generated audio bytes.
func (e *MockEngine) SetPayload(fn func(text string) []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.payload = fn
}

// Calls returns how many times Synthesize was invoked.
func (e *MockEngine) Calls() int64 {
	return e.calls.Load()
}

// Info returns engine capabilities.
func (e *MockEngine) Info() tts.EngineInfo {
	return tts.EngineInfo{
		Name:        string(tts.EngineMock),
		Format:      "mp3",
		MaxTextSize: 5000,
		IsOnline:    false,
	}
}

// Close releases resources held by the engine.
func (e *MockEngine) Close() error {
	return nil
}

var _ tts.Synthesizer = (*MockEngine)(nil)
