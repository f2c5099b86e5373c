package engines

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chifron/chifron/internal/tts"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantName string
		wantErr  error
	}{
		{"mock", Config{Engine: "mock"}, "mock", nil},
		{"gtts without validation", Config{Engine: "gtts"}, "gtts", nil},
		{"alias", Config{Engine: "gtts-cli"}, "gtts", nil},
		{"empty", Config{}, "", tts.ErrNoEngineConfigured},
		{"unknown", Config{Engine: "espeak"}, "", tts.ErrInvalidEngine},
		{"piper without model", Config{Engine: "piper"}, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(context.Background(), tt.config, false)

			if tt.wantName == "" {
				if err == nil {
					t.Fatal("expected error")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer s.Close() //nolint:errcheck
			if got := s.Info().Name; got != tt.wantName {
				t.Errorf("Info().Name = %q, want %q", got, tt.wantName)
			}
		})
	}
}

func TestNew_Validate(t *testing.T) {
	_, err := New(context.Background(), Config{
		Engine: "gtts",
		GTTS:   GTTSConfig{Binary: "definitely-not-gtts-cli"},
	}, true)
	if !errors.Is(err, tts.ErrEngineNotAvailable) {
		t.Errorf("err = %v, want ErrEngineNotAvailable", err)
	}
}

func TestMockEngine(t *testing.T) {
	ctx := context.Background()
	e := NewMockEngine(MockConfig{})

	audio, err := e.Synthesize(ctx, "cent", "fr")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio) != "ID3fr:cent" {
		t.Errorf("Synthesize() = %q", audio)
	}

	e.SetPayload(func(text string) []byte { return []byte("custom:" + text) })
	audio, _ = e.Synthesize(ctx, "cent", "fr")
	if string(audio) != "custom:cent" {
		t.Errorf("payload override ignored: %q", audio)
	}

	boom := errors.New("boom")
	e.SetFailure(boom)
	if _, err := e.Synthesize(ctx, "cent", "fr"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}

	if e.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", e.Calls())
	}
}

func TestMockEngine_FailConfig(t *testing.T) {
	e := NewMockEngine(MockConfig{Fail: true})
	if _, err := e.Synthesize(context.Background(), "un", "fr"); !errors.Is(err, ErrMockFailure) {
		t.Errorf("err = %v, want ErrMockFailure", err)
	}
}

func TestMockEngine_DelayHonoursContext(t *testing.T) {
	e := NewMockEngine(MockConfig{Delay: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Synthesize(ctx, "un", "fr")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("delay did not stop on context cancellation")
	}
}

func TestRunCommand_Stdin(t *testing.T) {
	bin := fakeBinary(t, "upper", "tr a-z A-Z\n")

	out, err := runCommand(context.Background(), strings.NewReader("dix-sept"), bin)
	if err != nil {
		t.Fatalf("runCommand failed: %v", err)
	}
	if string(out) != "DIX-SEPT" {
		t.Errorf("runCommand() = %q", out)
	}
}

func TestRunCommand_MissingBinary(t *testing.T) {
	_, err := runCommand(context.Background(), nil, "/nonexistent/binary")
	if !errors.Is(err, tts.ErrEngineNotAvailable) {
		t.Errorf("err = %v, want ErrEngineNotAvailable", err)
	}
}

func TestRunCommand_CancelStopsProcessTree(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		// The background child ignores SIGINT and keeps stdout open.
		{"background child", "sleep 5 &\nsleep 5\n"},
		{"ignores interrupt", "trap '' INT\nsleep 5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := fakeBinary(t, "slow", tt.script)

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			start := time.Now()
			_, err := runCommand(ctx, nil, bin)
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("err = %v, want context.DeadlineExceeded", err)
			}
			if elapsed := time.Since(start); elapsed > time.Second {
				t.Errorf("runCommand returned after %v", elapsed)
			}
		})
	}
}

func TestRunCommand_Failure(t *testing.T) {
	bin := fakeBinary(t, "broken", "echo 'no voice' >&2\nexit 3\n")

	_, err := runCommand(context.Background(), nil, bin)
	if err == nil {
		t.Fatal("expected error from failing process")
	}
	if errors.Is(err, tts.ErrEngineNotAvailable) {
		t.Errorf("a process that ran and failed is not a missing engine: %v", err)
	}
	if !strings.Contains(err.Error(), "no voice") {
		t.Errorf("error should carry stderr, got %v", err)
	}
}
