package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *zap.Logger
}

const maxLoggedStderr = 8 << 10

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	start := time.Now()
	err := cmd.Run()
	fields := []zap.Field{
		zap.String("cmd", name),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Int("stdout_bytes", stdout.Len()),
	}
	switch {
	case ctx.Err() != nil:
		r.logger.Warn("ocr.exec.cancelled", append(fields, zap.Error(ctx.Err()))...)
	case err != nil:
		r.logger.Error("ocr.exec.fail", append(fields,
			zap.String("args", strings.Join(args, " ")),
			zap.String("stderr", clip(stderr.String(), maxLoggedStderr)),
			zap.Error(err),
		)...)
	default:
		r.logger.Debug("ocr.exec.ok", fields...)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
