package engines

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/chifron/chifron/internal/tts"
)

// Config selects an engine and carries the settings of every engine.
type Config struct {
	Engine string       `mapstructure:"engine"`
	GTTS   GTTSConfig   `mapstructure:"gtts"`
	Google GoogleConfig `mapstructure:"google"`
	Piper  PiperConfig  `mapstructure:"piper"`
	Mock   MockConfig   `mapstructure:"mock"`
}

// New returns the synthesizer named by config.Engine. When validate is
// true and the engine implements tts.Validator, its dependencies are
// checked before it is returned.
func New(ctx context.Context, config Config, validate bool) (tts.Synthesizer, error) {
	engineType, err := tts.ParseEngineType(config.Engine)
	if err != nil {
		return nil, err
	}

	var s tts.Synthesizer
	switch engineType {
	case tts.EngineGTTS:
		s, err = NewGTTSEngine(config.GTTS)
	case tts.EngineGoogle:
		s, err = NewGoogleEngine(ctx, config.Google)
	case tts.EnginePiper:
		s, err = NewPiperEngine(config.Piper)
	case tts.EngineMock:
		s = NewMockEngine(config.Mock)
	}
	if err != nil {
		return nil, fmt.Errorf("%s engine: %w", engineType, err)
	}

	if v, ok := s.(tts.Validator); ok && validate {
		if err := v.Validate(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	info := s.Info()
	log.Info("TTS engine initialized", "engine", info.Name, "format", info.Format, "online", info.IsOnline)
	return s, nil
}
