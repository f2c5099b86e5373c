package engines

import (
	"context"
	"errors"
	"fmt"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/charmbracelet/log"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/chifron/chifron/internal/tts"
)

// GoogleEngine implements the Synthesizer interface using Google Cloud
// Text-to-Speech. Output is MP3.
type GoogleEngine struct {
	client       *texttospeech.Client
	voice        string
	speakingRate float64
	pitch        float64
	volumeGainDb float64
}

// GoogleConfig holds configuration for the Google Cloud engine.
type GoogleConfig struct {
	// CredentialsFile is a service account key. When empty the client
	// falls back to GOOGLE_APPLICATION_CREDENTIALS.
	CredentialsFile string `mapstructure:"credentials_file"`

	// Voice name, e.g. fr-FR-Standard-A. Empty lets Google pick one.
	Voice string `mapstructure:"voice"`

	SpeakingRate float64 `mapstructure:"speaking_rate"`
	Pitch        float64 `mapstructure:"pitch"`
	VolumeGainDb float64 `mapstructure:"volume_gain_db"`
}

const googleMaxTextSize = 5000

// NewGoogleEngine creates a Google Cloud TTS client.
func NewGoogleEngine(ctx context.Context, config GoogleConfig) (*GoogleEngine, error) {
	if config.SpeakingRate == 0 {
		config.SpeakingRate = 1.0
	}
	if config.SpeakingRate < 0.25 || config.SpeakingRate > 4.0 {
		return nil, fmt.Errorf("speaking_rate must be between 0.25 and 4.0, got %f", config.SpeakingRate)
	}
	if config.Pitch < -20.0 || config.Pitch > 20.0 {
		return nil, fmt.Errorf("pitch must be between -20.0 and 20.0, got %f", config.Pitch)
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: google tts client: %v", tts.ErrEngineNotAvailable, err)
	}

	return &GoogleEngine{
		client:       client,
		voice:        config.Voice,
		speakingRate: config.SpeakingRate,
		pitch:        config.Pitch,
		volumeGainDb: config.VolumeGainDb,
	}, nil
}

// Synthesize converts text to MP3 using Google Cloud TTS.
func (e *GoogleEngine) Synthesize(ctx context.Context, text string, languageTag string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}
	if len(text) > googleMaxTextSize {
		return nil, fmt.Errorf("text too long: %d bytes (max %d)", len(text), googleMaxTextSize)
	}

	code, err := googleLanguageCode(languageTag)
	if err != nil {
		return nil, err
	}

	req := &ttspb.SynthesizeSpeechRequest{
		Input: &ttspb.SynthesisInput{
			InputSource: &ttspb.SynthesisInput_Text{Text: text},
		},
		Voice: &ttspb.VoiceSelectionParams{
			LanguageCode: code,
			Name:         e.voice,
		},
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding: ttspb.AudioEncoding_MP3,
			SpeakingRate:  e.speakingRate,
			Pitch:         e.pitch,
			VolumeGainDb:  e.volumeGainDb,
		},
	}

	started := time.Now()
	resp, err := e.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("google synthesize: %w", err)
	}
	audio := resp.GetAudioContent()
	if len(audio) == 0 {
		return nil, errors.New("google tts returned no audio")
	}

	log.Debug("Google TTS synthesis complete", "language", code, "took", time.Since(started), "bytes", len(audio))
	return audio, nil
}

// googleLanguageCode expands a tag to the language-REGION form Google
// expects; "fr" becomes "fr-FR".
func googleLanguageCode(tag string) (string, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("invalid language tag %q: %w", tag, err)
	}
	base, _ := t.Base()
	region, _ := t.Region()
	return base.String() + "-" + region.String(), nil
}

// Info returns engine capabilities.
func (e *GoogleEngine) Info() tts.EngineInfo {
	return tts.EngineInfo{
		Name:        string(tts.EngineGoogle),
		Format:      "mp3",
		MaxTextSize: googleMaxTextSize,
		IsOnline:    true,
	}
}

// Close releases the gRPC connection.
func (e *GoogleEngine) Close() error {
	return e.client.Close()
}

var _ tts.Synthesizer = (*GoogleEngine)(nil)
