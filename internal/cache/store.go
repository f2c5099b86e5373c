package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"

	"github.com/chifron/chifron/internal/tts"
)

const (
	filePrefix = "audio_"
	tempSuffix = ".tmp"

	// Temp files younger than this may belong to a live writer in another
	// process and are left alone.
	staleTempAge = time.Minute
)

var filenamePattern = regexp.MustCompile(`^audio_([0-9a-f]{64})\.([a-z0-9]+)$`)

// Store is a content-addressed, append-only artifact store. Each distinct
// text is synthesized at most once per process; across processes the
// temp-file-then-rename write means readers only ever see complete files.
type Store struct {
	dir      string
	ext      string
	language string
	timeout  time.Duration
	synth    tts.Synthesizer
	engine   string

	group singleflight.Group

	mu    sync.RWMutex
	index map[string]Entry
	size  int64
	stats Stats
}

// Open prepares dir, removes temp files left by an interrupted write and
// indexes the artifacts already present.
func Open(opts Options) (*Store, error) {
	if opts.Synthesizer == nil {
		return nil, ErrNoSynthesizer
	}
	if opts.Dir == "" {
		return nil, errors.New("artifact store directory is required")
	}
	defaults := DefaultOptions()
	if opts.Language == "" {
		opts.Language = defaults.Language
	}
	if opts.SynthesisTimeout <= 0 {
		opts.SynthesisTimeout = defaults.SynthesisTimeout
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	info := opts.Synthesizer.Info()
	ext := info.Format
	if ext == "" {
		ext = "mp3"
	}

	s := &Store{
		dir:      opts.Dir,
		ext:      ext,
		language: opts.Language,
		timeout:  opts.SynthesisTimeout,
		synth:    opts.Synthesizer,
		engine:   info.Name,
		index:    make(map[string]Entry),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}

	log.Info("Artifact store opened",
		"dir", s.dir,
		"artifacts", len(s.index),
		"size", humanize.Bytes(uint64(s.size)), //nolint:gosec
		"engine", s.engine)
	return s, nil
}

// Digest returns the lowercase hex SHA-256 of text's UTF-8 bytes.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Filename returns the artifact name for text.
func (s *Store) Filename(text string) string {
	return filePrefix + Digest(text) + "." + s.ext
}

// ValidFilename reports whether name is a well-formed artifact name. Only
// such names are ever served, so a request path cannot leave the store.
func ValidFilename(name string) bool {
	return filenamePattern.MatchString(name)
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// Resolve returns the artifact for text, synthesizing it on a miss.
// Concurrent callers for the same text share one synthesis; each caller
// stops waiting when its own ctx is done. A failed synthesis leaves nothing
// behind, so the next call tries again.
func (s *Store) Resolve(ctx context.Context, text string) (Entry, error) {
	if text == "" {
		return Entry{}, tts.NewError(tts.ErrorCodeInvalidInput, "text cannot be empty", nil)
	}
	digest := Digest(text)

	if entry, ok := s.existing(digest); ok {
		s.record(func(st *Stats) { st.Hits++ })
		return entry, nil
	}
	s.record(func(st *Stats) { st.Misses++ })

	ch := s.group.DoChan(digest, func() (interface{}, error) {
		return s.produce(ctx, text, digest)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.record(func(st *Stats) { st.SharedWaits++ })
		}
		if res.Err != nil {
			return Entry{}, res.Err
		}
		return res.Val.(Entry), nil
	case <-ctx.Done():
		return Entry{}, tts.SynthesisError(s.engine, ctx.Err()).WithContext("digest", digest)
	}
}

// produce runs inside the singleflight group. The synthesis is detached
// from the first caller's cancellation and bounded by the store timeout
// instead, so a disconnecting client cannot fail the other waiters.
func (s *Store) produce(callerCtx context.Context, text, digest string) (Entry, error) {
	// A previous flight or another process may have finished in between.
	if entry, ok := s.existing(digest); ok {
		return entry, nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(callerCtx), s.timeout)
	defer cancel()

	started := time.Now()
	s.record(func(st *Stats) { st.Syntheses++ })

	audio, err := s.synth.Synthesize(ctx, text, s.language)
	if err == nil && len(audio) == 0 {
		err = errors.New("engine returned no audio")
	}
	if err != nil {
		s.record(func(st *Stats) { st.Failures++ })
		log.Warn("Synthesis failed", "engine", s.engine, "digest", digest[:12], "took", time.Since(started), "err", err)
		return Entry{}, tts.SynthesisError(s.engine, err).WithContext("digest", digest)
	}

	path := s.path(digest)
	if err := writeFile(path, audio); err != nil {
		s.record(func(st *Stats) { st.Failures++ })
		log.Error("Failed to store artifact", "path", path, "err", err)
		return Entry{}, tts.StorageError(path, err).WithContext("digest", digest)
	}

	entry := Entry{
		Digest:    digest,
		Filename:  filepath.Base(path),
		Path:      path,
		Size:      int64(len(audio)),
		CreatedAt: time.Now(),
	}
	s.add(entry)
	s.record(func(st *Stats) {
		st.BytesWritten += entry.Size
		st.LastWrite = entry.CreatedAt
	})

	log.Info("Artifact stored",
		"file", entry.Filename,
		"size", humanize.Bytes(uint64(entry.Size)), //nolint:gosec
		"took", time.Since(started))
	return entry, nil
}

// existing checks the index first and then the filesystem, which picks up
// artifacts written by other processes sharing the directory.
func (s *Store) existing(digest string) (Entry, bool) {
	s.mu.RLock()
	entry, ok := s.index[digest]
	s.mu.RUnlock()
	if ok {
		return entry, true
	}

	path := s.path(digest)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Entry{}, false
	}
	entry = Entry{
		Digest:    digest,
		Filename:  filepath.Base(path),
		Path:      path,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}
	s.add(entry)
	return entry, true
}

// Lookup returns the entry for digest without synthesizing.
func (s *Store) Lookup(digest string) (Entry, error) {
	if !ValidFilename(filePrefix + digest + "." + s.ext) {
		return Entry{}, ErrNotFound
	}
	if entry, ok := s.existing(digest); ok {
		return entry, nil
	}
	return Entry{}, ErrNotFound
}

// LookupFile returns the entry for an artifact filename.
func (s *Store) LookupFile(name string) (Entry, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil || m[2] != s.ext {
		return Entry{}, ErrNotFound
	}
	return s.Lookup(m[1])
}

// Entries returns a snapshot of the index.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.index))
	for _, e := range s.index {
		entries = append(entries, e)
	}
	return entries
}

// Len returns the number of indexed artifacts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Stats returns store statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := s.stats
	stats.Size = s.size
	stats.ItemCount = int64(len(s.index))
	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}
	return stats
}

func (s *Store) path(digest string) string {
	return filepath.Join(s.dir, filePrefix+digest+"."+s.ext)
}

func (s *Store) add(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[entry.Digest]; ok {
		return
	}
	s.index[entry.Digest] = entry
	s.size += entry.Size
}

func (s *Store) record(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// loadIndex rebuilds the index from the directory listing.
func (s *Store) loadIndex() error {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read artifact directory: %w", err)
	}

	for _, de := range dirEntries {
		name := de.Name()
		if !de.Type().IsRegular() {
			continue
		}

		if strings.HasSuffix(name, tempSuffix) {
			if info, err := de.Info(); err != nil || time.Since(info.ModTime()) < staleTempAge {
				continue
			}
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				log.Warn("Failed to remove stale temp file", "file", name, "err", err)
			} else {
				log.Debug("Removed stale temp file", "file", name)
			}
			continue
		}

		m := filenamePattern.FindStringSubmatch(name)
		if m == nil || m[2] != s.ext {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		s.index[m[1]] = Entry{
			Digest:    m[1],
			Filename:  name,
			Path:      filepath.Join(s.dir, name),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		}
		s.size += info.Size()
	}
	return nil
}

// writeFile writes data to a unique temp file in the target directory and
// renames it into place, so path is either absent or complete.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*"+tempSuffix)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
