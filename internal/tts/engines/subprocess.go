package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chifron/chifron/internal/tts"
)

// gracePeriod is how long a process gets between SIGINT and SIGKILL. After
// it the output pipes are closed even if a descendant still holds them.
const gracePeriod = 100 * time.Millisecond

// runCommand runs name with args and returns its stdout. When ctx is done
// the process group is interrupted, then killed after gracePeriod, and the
// returned error wraps ctx.Err(). A binary that cannot be started yields an
// error matching tts.ErrEngineNotAvailable.
func runCommand(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	setProcessGroup(cmd)
	cmd.Cancel = func() error { return interruptGroup(cmd.Process) }
	cmd.WaitDelay = gracePeriod

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s cancelled: %w", name, ctx.Err())
		}
		return nil, fmt.Errorf("%w: failed to start %s: %v", tts.ErrEngineNotAvailable, name, err)
	}

	err := cmd.Wait()
	if ctx.Err() != nil {
		// Descendants that ignored SIGINT still hold the group.
		killGroup(cmd.Process)
		log.Warn("Subprocess cancelled", "command", name, "after", time.Since(start), "cause", ctx.Err())
		return nil, fmt.Errorf("%s cancelled: %w", name, ctx.Err())
	}
	log.Debug("Subprocess finished", "command", name, "duration", time.Since(start), "error", err)
	if err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
