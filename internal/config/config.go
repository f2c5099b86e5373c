// Package config holds the chifron configuration. It is loaded once at
// process start and treated as read-only afterwards.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/language"

	"github.com/chifron/chifron/internal/tts"
	"github.com/chifron/chifron/internal/tts/engines"
)

// Config is the complete service configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	API    APIConfig    `mapstructure:"api"`
	Static StaticConfig `mapstructure:"static"`
	TTS    TTSConfig    `mapstructure:"tts"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string          `mapstructure:"addr"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig limits requests per client IP. A zero RPS disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// APIConfig configures the API routes and the bearer-key gate.
type APIConfig struct {
	BasePath string `mapstructure:"base_path"`

	// AccessKeys accepted as "Authorization: Bearer <key>". Empty means
	// every request is allowed.
	AccessKeys []string `mapstructure:"access_keys"`

	// SecurityFile holds additional access_keys. Defaults to security.yml
	// next to the config file.
	SecurityFile string `mapstructure:"security_file"`
}

// StaticConfig locates the artifact directory and its public URL.
type StaticConfig struct {
	Folder         string `mapstructure:"folder"`
	AudioSubfolder string `mapstructure:"audio_subfolder"`

	// URLPath mounts Folder publicly, e.g. "/static". Empty serves audio
	// only through the authenticated API route.
	URLPath string `mapstructure:"url_path"`
}

// TTSConfig selects the synthesis engine.
type TTSConfig struct {
	engines.Config `mapstructure:",squash"`

	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LogConfig configures charmbracelet/log.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":5000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				RPS:   10,
				Burst: 20,
			},
		},
		API: APIConfig{
			BasePath: "/api",
		},
		Static: StaticConfig{
			Folder:         "static",
			AudioSubfolder: "audio",
			URLPath:        "/static",
		},
		TTS: TTSConfig{
			Config: engines.Config{
				Engine: string(tts.EngineGTTS),
				GTTS: engines.GTTSConfig{
					Binary:            "gtts-cli",
					RequestsPerMinute: 50,
				},
				Google: engines.GoogleConfig{
					SpeakingRate: 1.0,
				},
				Piper: engines.PiperConfig{
					Binary: "piper",
				},
			},
			Language: "fr",
			Timeout:  30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// AudioDir is the artifact store directory.
func (c *Config) AudioDir() string {
	return filepath.Join(c.Static.Folder, c.Static.AudioSubfolder)
}

// AudioURLPath is the public URL prefix of the artifact directory, or ""
// when no static mount is configured.
func (c *Config) AudioURLPath() string {
	if c.Static.URLPath == "" {
		return ""
	}
	return strings.TrimRight(c.Static.URLPath, "/") + "/" + c.Static.AudioSubfolder
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if c.Server.RateLimit.RPS < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit.rps must not be negative, got %v", c.Server.RateLimit.RPS))
	}
	if c.Server.RateLimit.RPS > 0 && c.Server.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Errorf("server.rate_limit.burst must be at least 1, got %d", c.Server.RateLimit.Burst))
	}

	if c.API.BasePath != "" && !strings.HasPrefix(c.API.BasePath, "/") {
		errs = append(errs, fmt.Errorf("api.base_path must start with /, got %q", c.API.BasePath))
	}
	for i, key := range c.API.AccessKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Errorf("api.access_keys[%d] is empty", i))
		}
	}

	if c.Static.Folder == "" {
		errs = append(errs, errors.New("static.folder must not be empty"))
	}
	if c.Static.AudioSubfolder == "" || strings.Contains(c.Static.AudioSubfolder, "..") {
		errs = append(errs, fmt.Errorf("static.audio_subfolder is invalid: %q", c.Static.AudioSubfolder))
	}
	if c.Static.URLPath != "" && !strings.HasPrefix(c.Static.URLPath, "/") {
		errs = append(errs, fmt.Errorf("static.url_path must start with /, got %q", c.Static.URLPath))
	}
	if c.Static.URLPath != "" && c.API.BasePath != "" &&
		strings.TrimRight(c.Static.URLPath, "/") == strings.TrimRight(c.API.BasePath, "/") {
		errs = append(errs, errors.New("static.url_path must differ from api.base_path"))
	}

	if _, err := tts.ParseEngineType(c.TTS.Engine); err != nil {
		errs = append(errs, fmt.Errorf("tts.engine: %w", err))
	}
	if err := validateLanguage(c.TTS.Language); err != nil {
		errs = append(errs, err)
	}
	if c.TTS.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("tts.timeout must be positive, got %s", c.TTS.Timeout))
	}
	if c.TTS.GTTS.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("tts.gtts.requests_per_minute must not be negative, got %d", c.TTS.GTTS.RequestsPerMinute))
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "text", "json", "logfmt":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text, json or logfmt, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// validateLanguage accepts any well-formed tag whose base language is
// French; the word converter only speaks French.
func validateLanguage(tag string) error {
	t, err := language.Parse(tag)
	if err != nil {
		return fmt.Errorf("tts.language %q is not a valid BCP 47 tag: %w", tag, err)
	}
	base, _ := t.Base()
	french, _ := language.French.Base()
	if base != french {
		return fmt.Errorf("tts.language must be a French tag, got %q", tag)
	}
	return nil
}
