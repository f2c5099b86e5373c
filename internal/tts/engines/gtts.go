package engines

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/chifron/chifron/internal/tts"
)

// GTTSEngine implements the Synthesizer interface using gTTS (Google
// Translate TTS) through gtts-cli. The MP3 written by gtts-cli is returned
// as is. No API key is required.
type GTTSEngine struct {
	binary string
	slow   bool

	// Rate limiting to avoid being blocked by Google
	rateLimiter *rate.Limiter
}

// GTTSConfig holds configuration for the gTTS engine.
type GTTSConfig struct {
	// Binary is the gtts-cli executable - defaults to "gtts-cli"
	Binary string `mapstructure:"binary"`

	// Slow speech (--slow flag)
	Slow bool `mapstructure:"slow"`

	// Rate limit requests per minute to avoid being blocked (defaults to 50)
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

const gttsMaxTextSize = 5000

// NewGTTSEngine creates a new gTTS engine.
func NewGTTSEngine(config GTTSConfig) (*GTTSEngine, error) {
	if config.Binary == "" {
		config.Binary = "gtts-cli"
	}
	if config.RequestsPerMinute < 0 {
		return nil, fmt.Errorf("requests_per_minute must not be negative, got %d", config.RequestsPerMinute)
	}
	if config.RequestsPerMinute == 0 {
		config.RequestsPerMinute = 50 // Conservative default
	}

	return &GTTSEngine{
		binary:      config.Binary,
		slow:        config.Slow,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
	}, nil
}

// Synthesize converts text to MP3 using gtts-cli.
func (e *GTTSEngine) Synthesize(ctx context.Context, text string, languageTag string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}
	if len(text) > gttsMaxTextSize {
		return nil, fmt.Errorf("text too long: %d bytes (max %d)", len(text), gttsMaxTextSize)
	}

	lang, err := gttsLanguage(languageTag)
	if err != nil {
		return nil, err
	}

	if err := e.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	args := []string{text, "-l", lang}
	if e.slow {
		args = append(args, "--slow")
	}
	args = append(args, "-o", "-")

	mp3, err := runCommand(ctx, nil, e.binary, args...)
	if err != nil {
		return nil, err
	}
	if len(mp3) == 0 {
		return nil, errors.New("gtts-cli produced no MP3 output")
	}

	log.Debug("gTTS synthesis complete", "lang", lang, "bytes", len(mp3))
	return mp3, nil
}

// gttsLanguage reduces a BCP 47 tag to the bare language code gtts-cli
// expects ("fr-FR" -> "fr").
func gttsLanguage(tag string) (string, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("invalid language tag %q: %w", tag, err)
	}
	base, _ := t.Base()
	return base.String(), nil
}

// Info returns engine capabilities.
func (e *GTTSEngine) Info() tts.EngineInfo {
	return tts.EngineInfo{
		Name:        string(tts.EngineGTTS),
		Format:      "mp3",
		MaxTextSize: gttsMaxTextSize,
		IsOnline:    true,
	}
}

// Validate checks that gtts-cli can be executed.
func (e *GTTSEngine) Validate() error {
	path, err := exec.LookPath(e.binary)
	if err != nil {
		return fmt.Errorf("%w: gtts-cli not found in PATH: %v\n\nInstall with: pip install gtts", tts.ErrEngineNotAvailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := runCommand(ctx, nil, path, "--help"); err != nil {
		return fmt.Errorf("%w: cannot execute gtts-cli: %v", tts.ErrEngineNotAvailable, err)
	}
	return nil
}

// Close releases resources held by the engine.
func (e *GTTSEngine) Close() error {
	return nil
}

var _ tts.Synthesizer = (*GTTSEngine)(nil)
