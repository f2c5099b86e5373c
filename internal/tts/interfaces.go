package tts

import (
	"context"
)

// Synthesizer defines the contract for text-to-speech engines.
// Implementations include gTTS (online, free), Google Cloud TTS (online) and
// Piper (offline). The artifact store treats them as opaque functions that
// may fail or be slow.
type Synthesizer interface {
	// Synthesize converts text to encoded audio (see EngineInfo.Format).
	// Implementations must honour ctx cancellation and never return
	// partial audio together with a nil error.
	Synthesize(ctx context.Context, text string, languageTag string) ([]byte, error)

	// Info returns engine capabilities and configuration.
	Info() EngineInfo

	// Close releases any resources held by the engine.
	Close() error
}

// Validator is implemented by engines that can check their own
// dependencies (binaries, credentials) before serving traffic.
type Validator interface {
	Validate() error
}

// EngineInfo describes engine capabilities.
type EngineInfo struct {
	Name        string // Engine name (e.g., "gtts", "google")
	Format      string // File extension of produced audio ("mp3", "wav")
	MaxTextSize int    // Maximum text size in bytes
	IsOnline    bool   // Whether the engine requires internet
}

// EngineType represents the engine selection
type EngineType string

const (
	// EngineGTTS uses gtts-cli (Google Translate TTS)
	EngineGTTS EngineType = "gtts"

	// EngineGoogle uses Google Cloud Text-to-Speech
	EngineGoogle EngineType = "google"

	// EnginePiper uses the Piper offline engine
	EnginePiper EngineType = "piper"

	// EngineMock synthesizes silence in-process
	EngineMock EngineType = "mock"

	// EngineNone represents no engine selected
	EngineNone EngineType = ""
)

// ParseEngineType normalizes an engine name. It does not check that the
// engine can actually run.
func ParseEngineType(name string) (EngineType, error) {
	switch name {
	case "":
		return EngineNone, ErrNoEngineConfigured
	case "gtts", "gtts-cli":
		return EngineGTTS, nil
	case "google", "gcloud":
		return EngineGoogle, nil
	case "piper":
		return EnginePiper, nil
	case "mock":
		return EngineMock, nil
	default:
		return EngineNone, NewError(ErrorCodeInvalidInput, "unknown engine "+name, ErrInvalidEngine)
	}
}
