package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chifron/chifron/internal/tts"
	"github.com/chifron/chifron/internal/tts/engines"
)

func newTestStore(t *testing.T, opts ...func(*Options)) (*Store, *engines.MockEngine) {
	t.Helper()
	mock := engines.NewMockEngine(engines.MockConfig{})
	o := Options{
		Dir:              t.TempDir(),
		Synthesizer:      mock,
		Language:         "fr",
		SynthesisTimeout: 5 * time.Second,
	}
	for _, fn := range opts {
		fn(&o)
	}
	store, err := Open(o)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	return store, mock
}

// artifactFiles lists the regular files in dir.
func artifactFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDigest(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"zéro", "a701a906308542ed21fc20ca2bac4e8b805a6a6efb1467f6eb60ae35dc585afb"},
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	}

	for _, tt := range tests {
		if got := Digest(tt.text); got != tt.want {
			t.Errorf("Digest(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestStore_Filename(t *testing.T) {
	store, _ := newTestStore(t)

	name := store.Filename("zéro")
	if name != "audio_a701a906308542ed21fc20ca2bac4e8b805a6a6efb1467f6eb60ae35dc585afb.mp3" {
		t.Errorf("Filename() = %s", name)
	}
	if !ValidFilename(name) {
		t.Errorf("ValidFilename(%s) = false", name)
	}
}

func TestValidFilename(t *testing.T) {
	valid := "audio_" + strings.Repeat("ab", 32) + ".mp3"
	tests := []struct {
		name string
		want bool
	}{
		{valid, true},
		{"audio_" + strings.Repeat("ab", 32) + ".wav", true},
		{"audio_" + strings.Repeat("AB", 32) + ".mp3", false},
		{"audio_" + strings.Repeat("ab", 31) + ".mp3", false},
		{"../" + valid, false},
		{valid + "/..", false},
		{"audio_.mp3", false},
		{"security.yml", false},
	}

	for _, tt := range tests {
		if got := ValidFilename(tt.name); got != tt.want {
			t.Errorf("ValidFilename(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStore_ResolveIdempotent(t *testing.T) {
	store, mock := newTestStore(t)
	ctx := context.Background()

	first, err := store.Resolve(ctx, "vingt et un")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := store.Resolve(ctx, "vingt et un")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if first.Filename != second.Filename || first.Digest != second.Digest {
		t.Errorf("Resolve not idempotent: %+v vs %+v", first, second)
	}
	if first.Filename != store.Filename("vingt et un") {
		t.Errorf("Filename = %s, want %s", first.Filename, store.Filename("vingt et un"))
	}
	if mock.Calls() != 1 {
		t.Errorf("Synthesize called %d times, want 1", mock.Calls())
	}

	data, err := os.ReadFile(first.Path)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}
	if string(data) != "ID3fr:vingt et un" {
		t.Errorf("artifact content = %q", data)
	}
	if first.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", first.Size, len(data))
	}

	stats := store.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Syntheses != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %f, want 0.5", stats.HitRate)
	}
}

func TestStore_ResolveDistinctTexts(t *testing.T) {
	store, mock := newTestStore(t)
	ctx := context.Background()

	texts := []string{"un", "deux", "trois", "quatre-vingts"}
	seen := make(map[string]bool)
	for _, text := range texts {
		entry, err := store.Resolve(ctx, text)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", text, err)
		}
		if seen[entry.Filename] {
			t.Errorf("duplicate filename %s", entry.Filename)
		}
		seen[entry.Filename] = true
	}

	if store.Len() != len(texts) {
		t.Errorf("Len() = %d, want %d", store.Len(), len(texts))
	}
	if int(mock.Calls()) != len(texts) {
		t.Errorf("Synthesize called %d times, want %d", mock.Calls(), len(texts))
	}
	if len(store.Entries()) != len(texts) {
		t.Errorf("Entries() returned %d entries", len(store.Entries()))
	}
}

func TestStore_ResolveConcurrentSharesSynthesis(t *testing.T) {
	store, mock := newTestStore(t)
	mock.SetDelay(200 * time.Millisecond)

	const callers = 20
	var wg sync.WaitGroup
	results := make([]Entry, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.Resolve(context.Background(), "quatre-vingt-onze")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i].Filename != results[0].Filename {
			t.Errorf("caller %d got %s, want %s", i, results[i].Filename, results[0].Filename)
		}
	}
	if mock.Calls() != 1 {
		t.Errorf("Synthesize called %d times, want 1", mock.Calls())
	}
	if got := artifactFiles(t, store.Dir()); len(got) != 1 {
		t.Errorf("expected exactly one artifact, found %v", got)
	}
}

func TestStore_ResolveIsAtomic(t *testing.T) {
	store, mock := newTestStore(t)

	payload := bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x00}, 1<<20)
	mock.SetPayload(func(string) []byte { return payload })
	mock.SetDelay(50 * time.Millisecond)

	path := filepath.Join(store.Dir(), store.Filename("mille"))
	done := make(chan struct{})
	partial := make(chan int64, 1)

	// Anything visible at the final path must already be complete.
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			if info, err := os.Stat(path); err == nil && info.Size() != int64(len(payload)) {
				select {
				case partial <- info.Size():
				default:
				}
				return
			}
		}
	}()

	if _, err := store.Resolve(context.Background(), "mille"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	close(done)

	select {
	case size := <-partial:
		t.Fatalf("observed partial artifact of %d bytes", size)
	default:
	}

	for _, name := range artifactFiles(t, store.Dir()) {
		if strings.HasSuffix(name, tempSuffix) {
			t.Errorf("temp file left behind: %s", name)
		}
	}
}

func TestStore_ResolveFailureIsNotCached(t *testing.T) {
	store, mock := newTestStore(t)
	ctx := context.Background()

	mock.SetFailure(errors.New("engine exploded"))
	_, err := store.Resolve(ctx, "cent un")
	if err == nil {
		t.Fatal("expected synthesis error")
	}
	if !errors.Is(err, tts.ErrSynthesisFailed) {
		t.Errorf("error %v should match ErrSynthesisFailed", err)
	}
	if code := tts.CodeOf(err); code != tts.ErrorCodeSynthesisFailed {
		t.Errorf("code = %s, want %s", code, tts.ErrorCodeSynthesisFailed)
	}
	if got := artifactFiles(t, store.Dir()); len(got) != 0 {
		t.Errorf("failed synthesis left files behind: %v", got)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d after failure", store.Len())
	}

	// The next request retries instead of replaying the failure.
	mock.SetFailure(nil)
	entry, err := store.Resolve(ctx, "cent un")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if _, err := os.Stat(entry.Path); err != nil {
		t.Errorf("artifact missing after retry: %v", err)
	}
	if mock.Calls() != 2 {
		t.Errorf("Synthesize called %d times, want 2", mock.Calls())
	}
	if store.Stats().Failures != 1 {
		t.Errorf("Failures = %d, want 1", store.Stats().Failures)
	}
}

func TestStore_ResolveEmptyAudio(t *testing.T) {
	store, mock := newTestStore(t)
	mock.SetPayload(func(string) []byte { return nil })

	_, err := store.Resolve(context.Background(), "deux")
	if tts.CodeOf(err) != tts.ErrorCodeSynthesisFailed {
		t.Errorf("code = %s, want %s", tts.CodeOf(err), tts.ErrorCodeSynthesisFailed)
	}
	if got := artifactFiles(t, store.Dir()); len(got) != 0 {
		t.Errorf("empty synthesis left files behind: %v", got)
	}
}

func TestStore_ResolveTimeout(t *testing.T) {
	store, mock := newTestStore(t, func(o *Options) {
		o.SynthesisTimeout = 50 * time.Millisecond
	})
	mock.SetDelay(time.Second)

	start := time.Now()
	_, err := store.Resolve(context.Background(), "neuf")
	if tts.CodeOf(err) != tts.ErrorCodeTimeout {
		t.Fatalf("code = %s (%v), want %s", tts.CodeOf(err), err, tts.ErrorCodeTimeout)
	}
	if !errors.Is(err, tts.ErrTimeout) {
		t.Errorf("error %v should match ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("timeout took %v", elapsed)
	}
	if got := artifactFiles(t, store.Dir()); len(got) != 0 {
		t.Errorf("timed out synthesis left files behind: %v", got)
	}
}

// scriptEngine returns a gtts engine backed by a shell script.
func scriptEngine(t *testing.T, script string) *engines.GTTSEngine {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script engines require a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "gtts-cli")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("Failed to write engine script: %v", err)
	}
	engine, err := engines.NewGTTSEngine(engines.GTTSConfig{Binary: bin})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return engine
}

func TestStore_ResolveTimeoutStopsSubprocess(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"slow engine", "sleep 3\n"},
		{"engine with a detached child", "sleep 3 &\nsleep 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestStore(t, func(o *Options) {
				o.Synthesizer = scriptEngine(t, tt.script)
				o.SynthesisTimeout = 100 * time.Millisecond
			})

			start := time.Now()
			_, err := store.Resolve(context.Background(), "un")
			if tts.CodeOf(err) != tts.ErrorCodeTimeout {
				t.Fatalf("code = %s (%v), want %s", tts.CodeOf(err), err, tts.ErrorCodeTimeout)
			}
			if elapsed := time.Since(start); elapsed > time.Second {
				t.Errorf("Resolve returned after %v with a 100ms synthesis timeout", elapsed)
			}
			if got := artifactFiles(t, store.Dir()); len(got) != 0 {
				t.Errorf("timed out synthesis left files behind: %v", got)
			}
		})
	}
}

func TestStore_ResolveEngineUnavailable(t *testing.T) {
	engine, err := engines.NewGTTSEngine(engines.GTTSConfig{Binary: filepath.Join(t.TempDir(), "missing-gtts-cli")})
	if err != nil {
		t.Fatal(err)
	}
	store, _ := newTestStore(t, func(o *Options) { o.Synthesizer = engine })

	_, err = store.Resolve(context.Background(), "deux")
	if tts.CodeOf(err) != tts.ErrorCodeEngineUnavailable {
		t.Fatalf("code = %s (%v), want %s", tts.CodeOf(err), err, tts.ErrorCodeEngineUnavailable)
	}
	if !errors.Is(err, tts.ErrEngineNotAvailable) {
		t.Errorf("error %v should match ErrEngineNotAvailable", err)
	}
}

func TestStore_CallerCancellationDoesNotAbortSharedSynthesis(t *testing.T) {
	store, mock := newTestStore(t)
	mock.SetDelay(200 * time.Millisecond)

	impatient, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	var patientErr, impatientErr error
	var patientEntry Entry

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, impatientErr = store.Resolve(impatient, "soixante-dix")
	}()
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		patientEntry, patientErr = store.Resolve(context.Background(), "soixante-dix")
	}()
	wg.Wait()

	if tts.CodeOf(impatientErr) != tts.ErrorCodeTimeout {
		t.Errorf("impatient caller code = %s, want %s", tts.CodeOf(impatientErr), tts.ErrorCodeTimeout)
	}
	if patientErr != nil {
		t.Fatalf("patient caller failed: %v", patientErr)
	}
	if _, err := os.Stat(patientEntry.Path); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("Synthesize called %d times, want 1", mock.Calls())
	}
}

func TestStore_StorageFailure(t *testing.T) {
	store, mock := newTestStore(t)

	// Replace the directory with a regular file so the temp file cannot be
	// created.
	if err := os.RemoveAll(store.Dir()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Dir(), []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := store.Resolve(context.Background(), "trois")
	if tts.CodeOf(err) != tts.ErrorCodeStorageFailed {
		t.Fatalf("code = %s (%v), want %s", tts.CodeOf(err), err, tts.ErrorCodeStorageFailed)
	}
	if !errors.Is(err, tts.ErrStorageFailed) {
		t.Errorf("error %v should match ErrStorageFailed", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("Synthesize called %d times, want 1", mock.Calls())
	}
}

func TestStore_ResolveEmptyText(t *testing.T) {
	store, mock := newTestStore(t)

	_, err := store.Resolve(context.Background(), "")
	if tts.CodeOf(err) != tts.ErrorCodeInvalidInput {
		t.Errorf("code = %s, want %s", tts.CodeOf(err), tts.ErrorCodeInvalidInput)
	}
	if mock.Calls() != 0 {
		t.Errorf("Synthesize called for empty text")
	}
}

func TestStore_ExternalArtifactIsAHit(t *testing.T) {
	store, mock := newTestStore(t)

	// Another process sharing the directory already produced it.
	path := filepath.Join(store.Dir(), store.Filename("sept"))
	if err := os.WriteFile(path, []byte("ID3external"), 0o644); err != nil {
		t.Fatal(err)
	}

	entry, err := store.Resolve(context.Background(), "sept")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if entry.Size != int64(len("ID3external")) {
		t.Errorf("Size = %d", entry.Size)
	}
	if mock.Calls() != 0 {
		t.Errorf("Synthesize called %d times, want 0", mock.Calls())
	}
}

func TestOpen_RebuildsIndex(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"un", "deux", "trois"} {
		if _, err := store.Resolve(ctx, text); err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
	}

	mock := engines.NewMockEngine(engines.MockConfig{})
	reopened, err := Open(Options{Dir: store.Dir(), Synthesizer: mock})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if reopened.Len() != 3 {
		t.Errorf("Len() = %d, want 3", reopened.Len())
	}
	if reopened.Stats().Size != store.Stats().Size {
		t.Errorf("Size = %d, want %d", reopened.Stats().Size, store.Stats().Size)
	}

	entry, err := reopened.Lookup(Digest("deux"))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if entry.Filename != store.Filename("deux") {
		t.Errorf("Lookup returned %s", entry.Filename)
	}
	if _, err := reopened.Resolve(ctx, "deux"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if mock.Calls() != 0 {
		t.Errorf("reopened store re-synthesized an existing artifact")
	}
}

func TestOpen_RemovesStaleTempFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "audio_x.mp3.123.tmp")
	fresh := filepath.Join(dir, "audio_y.mp3.456.tmp")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("partial"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	store, err := Open(Options{Dir: dir, Synthesizer: engines.NewMockEngine(engines.MockConfig{})})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale temp file should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh temp file should be kept: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("temp files must not be indexed, Len() = %d", store.Len())
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(Options{Dir: t.TempDir()}); !errors.Is(err, ErrNoSynthesizer) {
		t.Errorf("Open without synthesizer: err = %v, want ErrNoSynthesizer", err)
	}
	if _, err := Open(Options{Synthesizer: engines.NewMockEngine(engines.MockConfig{})}); err == nil {
		t.Error("Open without directory should fail")
	}
}

func TestStore_LookupFile(t *testing.T) {
	store, _ := newTestStore(t)

	entry, err := store.Resolve(context.Background(), "huit")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	got, err := store.LookupFile(entry.Filename)
	if err != nil {
		t.Fatalf("LookupFile failed: %v", err)
	}
	if got.Path != entry.Path {
		t.Errorf("Path = %s, want %s", got.Path, entry.Path)
	}

	for _, name := range []string{
		"../" + entry.Filename,
		strings.TrimSuffix(entry.Filename, ".mp3") + ".wav",
		store.Filename("absent"),
	} {
		if _, err := store.LookupFile(name); !errors.Is(err, ErrNotFound) {
			t.Errorf("LookupFile(%q) err = %v, want ErrNotFound", name, err)
		}
	}
	if _, err := store.Lookup("../../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup with traversal should fail, got %v", err)
	}
}
