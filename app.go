package main

import (
	"context"
	"errors"

	"github.com/chifron/chifron/internal/cache"
	"github.com/chifron/chifron/internal/config"
	"github.com/chifron/chifron/internal/numbers"
	"github.com/chifron/chifron/internal/tts"
	"github.com/chifron/chifron/internal/tts/engines"
)

// app holds the components shared by serve and say.
type app struct {
	synth   tts.Synthesizer
	store   *cache.Store
	numbers *numbers.Service
}

func newApp(ctx context.Context, c *config.Config) (*app, error) {
	synth, err := engines.New(ctx, c.TTS.Config, true)
	if err != nil {
		return nil, err
	}

	store, err := cache.Open(cache.Options{
		Dir:              c.AudioDir(),
		Synthesizer:      synth,
		Language:         c.TTS.Language,
		SynthesisTimeout: c.TTS.Timeout,
	})
	if err != nil {
		return nil, errors.Join(err, synth.Close())
	}

	svc := numbers.NewService(store, numbers.Options{
		APIBasePath:   c.API.BasePath,
		StaticURLPath: c.AudioURLPath(),
	})

	return &app{synth: synth, store: store, numbers: svc}, nil
}

func (a *app) Close() error {
	return a.synth.Close()
}
