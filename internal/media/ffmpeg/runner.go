package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"edlstream/internal/services"
)

// maxDiagnosticBytes caps how much captured stderr is preserved in error payloads.
const maxDiagnosticBytes = 4096

// Runner executes a single transcoder invocation.
type Runner interface {
	Run(ctx context.Context, req Request) error
}

// Request describes one transcoder invocation.
type Request struct {
	// Args are the ffmpeg arguments, excluding the binary name.
	Args []string
	// Dir is the working directory for the invocation; empty means inherited.
	Dir string
	// Timeout bounds the run. Zero means no additional deadline beyond ctx.
	Timeout time.Duration
	// Operation labels the invocation in error payloads (e.g. "extract", "segment").
	Operation string
}

// Option configures the CLI runner.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI invokes the real ffmpeg binary.
type CLI struct {
	binary string
}

// NewCLI constructs a runner using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Run executes ffmpeg and classifies failures. The subprocess runs in its own
// process group so cancellation reaps encoder children as well.
func (c *CLI) Run(ctx context.Context, req Request) error {
	if len(req.Args) == 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", req.Operation, "no arguments", nil)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	args := append([]string{"-nostdin", "-y"}, req.Args...)
	cmd := exec.CommandContext(runCtx, c.binary, args...) //nolint:gosec
	cmd.Dir = req.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative PID signals the whole process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	diagnostic := tailString(stderr.Bytes(), maxDiagnosticBytes)
	if runCtx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
		message := fmt.Sprintf("killed after %s", req.Timeout)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			message = "deadline exceeded"
		}
		return services.Wrap(services.ErrTimeout, "ffmpeg", req.Operation, message, errors.New(diagnostic))
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		message := fmt.Sprintf("exit status %d", exitErr.ExitCode())
		return services.Wrap(services.ErrExternalTool, "ffmpeg", req.Operation, message, errors.New(diagnostic))
	}
	return services.Wrap(services.ErrExternalTool, "ffmpeg", req.Operation, "start failed", err)
}

func tailString(data []byte, limit int) string {
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed) <= limit {
		return trimmed
	}
	return trimmed[len(trimmed)-limit:]
}

var _ Runner = (*CLI)(nil)
