package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// AppName names the config file, the env prefix and the config directories.
const AppName = "chifron"

// SecurityFileName is read next to the config file for extra access keys.
const SecurityFileName = "security.yml"

// envOverlay holds settings read with caarlos0/env after viper has
// unmarshalled; list values are awkward to pass through viper's env binding.
type envOverlay struct {
	APIKeys  []string `env:"CHIFRON_API_KEYS" envSeparator:","`
	LogLevel string   `env:"CHIFRON_LOG_LEVEL"`
}

// ConfigDirs returns the directories searched for chifron.yml, most
// specific first.
func ConfigDirs() ([]string, error) {
	scope := gap.NewScope(gap.User, AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("could not find configuration directory: %w", err)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}

	if c := os.Getenv("CHIFRON_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

// Prepare registers defaults and environment binding on v.
func Prepare(v *viper.Viper) {
	SetDefaults(v)
	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers every default so AutomaticEnv can see each key.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.rate_limit.rps", d.Server.RateLimit.RPS)
	v.SetDefault("server.rate_limit.burst", d.Server.RateLimit.Burst)

	v.SetDefault("api.base_path", d.API.BasePath)
	v.SetDefault("api.access_keys", []string{})
	v.SetDefault("api.security_file", "")

	v.SetDefault("static.folder", d.Static.Folder)
	v.SetDefault("static.audio_subfolder", d.Static.AudioSubfolder)
	v.SetDefault("static.url_path", d.Static.URLPath)

	v.SetDefault("tts.engine", d.TTS.Engine)
	v.SetDefault("tts.language", d.TTS.Language)
	v.SetDefault("tts.timeout", d.TTS.Timeout)
	v.SetDefault("tts.gtts.binary", d.TTS.GTTS.Binary)
	v.SetDefault("tts.gtts.slow", false)
	v.SetDefault("tts.gtts.requests_per_minute", d.TTS.GTTS.RequestsPerMinute)
	v.SetDefault("tts.google.credentials_file", "")
	v.SetDefault("tts.google.voice", "")
	v.SetDefault("tts.google.speaking_rate", d.TTS.Google.SpeakingRate)
	v.SetDefault("tts.google.pitch", 0.0)
	v.SetDefault("tts.google.volume_gain_db", 0.0)
	v.SetDefault("tts.piper.binary", d.TTS.Piper.Binary)
	v.SetDefault("tts.piper.model", "")
	v.SetDefault("tts.piper.config", "")
	v.SetDefault("tts.piper.speaker", 0)
	v.SetDefault("tts.piper.temp_dir", "")
	v.SetDefault("tts.mock.delay", "0s")
	v.SetDefault("tts.mock.fail", false)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", "")
}

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none
// are given) into the process environment. Missing files are skipped and
// variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("unable to load %s: %w", f, err)
		}
		log.Debug("Loaded environment file", "path", f)
	}
	return nil
}

// Load builds the Config from v, merges the security file and the
// environment overlay, expands paths and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	securityFile := cfg.API.SecurityFile
	if securityFile == "" && v.ConfigFileUsed() != "" {
		securityFile = filepath.Join(filepath.Dir(v.ConfigFileUsed()), SecurityFileName)
	}
	if securityFile != "" {
		keys, err := loadAccessKeys(expandPath(securityFile))
		if err != nil {
			return nil, err
		}
		cfg.API.AccessKeys = append(cfg.API.AccessKeys, keys...)
	}

	overlay, err := env.ParseAs[envOverlay]()
	if err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}
	if len(overlay.APIKeys) > 0 {
		cfg.API.AccessKeys = overlay.APIKeys
	}
	if overlay.LogLevel != "" {
		cfg.Log.Level = overlay.LogLevel
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadAccessKeys reads access keys from a security file, either top-level
// access_keys or nested under api like the main config. The format follows
// the extension (security.json works too) and defaults to YAML. A missing
// file yields no keys.
func loadAccessKeys(path string) ([]string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	sv := viper.New()
	sv.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		sv.SetConfigType("yaml")
	}
	if err := sv.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read security file %s: %w", path, err)
	}

	keys := sv.GetStringSlice("access_keys")
	keys = append(keys, sv.GetStringSlice("api.access_keys")...)
	log.Debug("Loaded access keys", "path", path, "count", len(keys))
	return keys, nil
}

func (c *Config) normalize() {
	if c.API.BasePath != "/" {
		c.API.BasePath = strings.TrimRight(c.API.BasePath, "/")
	} else {
		c.API.BasePath = ""
	}
	c.Static.URLPath = strings.TrimRight(c.Static.URLPath, "/")
	c.Static.AudioSubfolder = strings.Trim(c.Static.AudioSubfolder, "/")

	keys := c.API.AccessKeys[:0]
	for _, k := range c.API.AccessKeys {
		keys = append(keys, strings.TrimSpace(k))
	}
	c.API.AccessKeys = keys

	c.Static.Folder = expandPath(c.Static.Folder)
	c.Log.File = expandPath(c.Log.File)
	c.TTS.Piper.ModelPath = expandPath(c.TTS.Piper.ModelPath)
	c.TTS.Piper.ConfigPath = expandPath(c.TTS.Piper.ConfigPath)
	c.TTS.Piper.TempDir = expandPath(c.TTS.Piper.TempDir)
	c.TTS.Google.CredentialsFile = expandPath(c.TTS.Google.CredentialsFile)
}

// expandPath expands ~ and environment variables in path.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	expanded, err := homedir.Expand(os.ExpandEnv(path))
	if err != nil {
		return path
	}
	return expanded
}
