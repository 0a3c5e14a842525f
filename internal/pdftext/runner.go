package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const maxStderrLog = 8 << 10

// Runner executes poppler and tesseract binaries. Tests swap in a stub.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

// Run executes name with args and captures both streams. A binary missing from
// PATH and a non-zero exit are reported as distinct errors; stderr is folded
// into the latter.
func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		r.logger.Error("pdftext.exec.not_found", "bin", name, "error", err)
		return nil, nil, fmt.Errorf("%s is not installed or not on PATH: %w", name, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	r.logger.Debug("pdftext.exec.start", "bin", name, "args", strings.Join(args, " "))
	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	if err == nil {
		r.logger.Debug("pdftext.exec.ok",
			"bin", name,
			"elapsed_ms", elapsed,
			"stdout_bytes", stdout.Len(),
		)
		return stdout.Bytes(), stderr.Bytes(), nil
	}

	msg := truncate(strings.TrimSpace(stderr.String()), maxStderrLog)
	r.logger.Error("pdftext.exec.failed", "bin", name, "elapsed_ms", elapsed, "error", err, "stderr", msg)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && msg != "" {
		err = fmt.Errorf("%s exited with %d: %s: %w", name, exitErr.ExitCode(), msg, err)
	} else {
		err = fmt.Errorf("run %s: %w", name, err)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
