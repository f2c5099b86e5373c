// Package numbers answers number lookups: the French words for a number and
// the URL of the spoken audio for those words.
package numbers

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chifron/chifron/internal/cache"
	"github.com/chifron/chifron/internal/numwords"
	"github.com/chifron/chifron/internal/tts"
)

// Resolver maps words to a stored audio artifact.
type Resolver interface {
	Resolve(ctx context.Context, text string) (cache.Entry, error)
}

// Result is the answer to a lookup.
type Result struct {
	Number   int    `json:"number"`
	Words    string `json:"words"`
	AudioURL string `json:"audio_url"`
}

// Options configures how audio URLs are built.
type Options struct {
	// APIBasePath prefixes the API routes, e.g. "/api". Artifacts are
	// served under <APIBasePath>/audio/ when StaticURLPath is empty.
	APIBasePath string

	// StaticURLPath is the public prefix the artifact directory is
	// mounted on, e.g. "/static/audio".
	StaticURLPath string
}

// Service orchestrates word conversion and audio resolution.
type Service struct {
	resolver  Resolver
	urlPrefix string
}

// NewService creates a Service.
func NewService(resolver Resolver, opts Options) *Service {
	prefix := strings.TrimRight(opts.StaticURLPath, "/")
	if prefix == "" {
		prefix = strings.TrimRight(opts.APIBasePath, "/") + "/audio"
	}
	return &Service{
		resolver:  resolver,
		urlPrefix: prefix,
	}
}

// Words returns the French words for n without touching the audio store.
func (s *Service) Words(n int) (string, error) {
	words, err := numwords.ToWords(n)
	if err != nil {
		return "", tts.NewError(tts.ErrorCodeOutOfRange, err.Error(), err).WithContext("number", n)
	}
	return words, nil
}

// GetNumberInfo returns the words and audio URL for n. Either both are
// returned or an *tts.Error is; there are no partial results and no
// retries.
func (s *Service) GetNumberInfo(ctx context.Context, n int) (Result, error) {
	started := time.Now()

	words, err := s.Words(n)
	if err != nil {
		return Result{}, err
	}

	entry, err := s.resolver.Resolve(ctx, words)
	if err != nil {
		log.Warn("Number lookup failed", "number", n, "code", tts.CodeOf(err), "err", err)
		return Result{}, err
	}

	log.Debug("Number resolved", "number", n, "words", words, "file", entry.Filename, "took", time.Since(started))
	return Result{
		Number:   n,
		Words:    words,
		AudioURL: s.AudioURL(entry.Filename),
	}, nil
}

// AudioURL returns the public URL of an artifact.
func (s *Service) AudioURL(filename string) string {
	return s.urlPrefix + "/" + filename
}
