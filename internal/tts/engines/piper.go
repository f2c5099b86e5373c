package engines

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/chifron/chifron/internal/tts"
)

// PiperEngine implements the Synthesizer interface using Piper (offline
// TTS). A fresh process is started per synthesis with stdin configured
// before start. The language is fixed by the voice model, so languageTag is
// only informational.
type PiperEngine struct {
	binary     string
	modelPath  string
	configPath string
	speaker    int
	tempDir    string
}

// PiperConfig holds configuration for the Piper engine.
type PiperConfig struct {
	// Binary is the piper executable - defaults to "piper"
	Binary string `mapstructure:"binary"`

	// Model file path (required), e.g. fr_FR-siwis-medium.onnx
	ModelPath string `mapstructure:"model"`

	// Config file path (optional, defaults to model path with .json extension)
	ConfigPath string `mapstructure:"config"`

	// Speaker id for multi-speaker models
	Speaker int `mapstructure:"speaker"`

	// TempDir for intermediate WAV files - defaults to system temp
	TempDir string `mapstructure:"temp_dir"`
}

const piperMaxTextSize = 5000

// NewPiperEngine creates a new Piper engine.
func NewPiperEngine(config PiperConfig) (*PiperEngine, error) {
	if config.ModelPath == "" {
		return nil, errors.New("piper model path is required")
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if config.Binary == "" {
		config.Binary = "piper"
	}
	if config.ConfigPath == "" {
		// Piper voices ship as voice.onnx + voice.onnx.json
		config.ConfigPath = config.ModelPath + ".json"
		if _, err := os.Stat(config.ConfigPath); err != nil {
			config.ConfigPath = strings.TrimSuffix(config.ModelPath, filepath.Ext(config.ModelPath)) + ".json"
		}
	}
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	if err := os.MkdirAll(config.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &PiperEngine{
		binary:     config.Binary,
		modelPath:  config.ModelPath,
		configPath: config.ConfigPath,
		speaker:    config.Speaker,
		tempDir:    config.TempDir,
	}, nil
}

// Synthesize converts text to a WAV file using Piper.
func (e *PiperEngine) Synthesize(ctx context.Context, text string, _ string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}
	if len(text) > piperMaxTextSize {
		return nil, fmt.Errorf("text too long: %d bytes (max %d)", len(text), piperMaxTextSize)
	}

	out, err := os.CreateTemp(e.tempDir, "piper-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp WAV file: %w", err)
	}
	outPath := out.Name()
	_ = out.Close()
	defer os.Remove(outPath)

	args := []string{
		"--model", e.modelPath,
		"--config", e.configPath,
		"--output_file", outPath,
	}
	if e.speaker > 0 {
		args = append(args, "--speaker", fmt.Sprint(e.speaker))
	}

	if _, err := runCommand(ctx, strings.NewReader(text), e.binary, args...); err != nil {
		return nil, err
	}

	wav, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read piper output: %w", err)
	}
	if len(wav) == 0 {
		return nil, errors.New("piper produced no audio output")
	}
	return wav, nil
}

// Info returns engine capabilities.
func (e *PiperEngine) Info() tts.EngineInfo {
	return tts.EngineInfo{
		Name:        string(tts.EnginePiper),
		Format:      "wav",
		MaxTextSize: piperMaxTextSize,
		IsOnline:    false,
	}
}

// Validate checks that the piper binary can be found.
func (e *PiperEngine) Validate() error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return fmt.Errorf("%w: piper not found in PATH: %v", tts.ErrEngineNotAvailable, err)
	}
	return nil
}

// Close releases resources held by the engine.
func (e *PiperEngine) Close() error {
	return nil
}

var _ tts.Synthesizer = (*PiperEngine)(nil)
