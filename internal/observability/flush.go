package observability

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
)

// FlushTelemetry syncs logger as the last step of shutdown, after the HTTP
// server has stopped and in-flight lookups have drained (the CLI calls it
// when a command finishes). Prometheus scrapes /metrics, so logs are the only
// buffer to flush. Both loggers write to stderr, and syncing a terminal or
// pipe fails with EINVAL or ENOTTY; those errors are dropped.
func FlushTelemetry(ctx context.Context, logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("flush logs: %w", err)
	}
	err := logger.Sync()
	if err == nil || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return fmt.Errorf("flush logs: %w", err)
}
