package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"mmoto/internal/logging"
	"mmoto/internal/services"
	"mmoto/internal/stage"
)

// Options controls one stage execution.
type Options struct {
	Logger  *slog.Logger
	Handler stage.Handler
}

// Run executes a stage with stage-scoped logging. Cancellation is logged as a
// stop rather than a failure. The stage error is returned unchanged.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable")
	}
	name := opts.Handler.Name()
	if err := ctx.Err(); err != nil {
		return err
	}

	stageCtx := services.WithStage(ctx, name)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("stage_label", Label(name)),
	)

	started := time.Now()
	err := opts.Handler.Execute(stageCtx)
	elapsed := time.Since(started)
	switch {
	case err == nil:
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("elapsed", elapsed),
		)
		return nil
	case services.IsCanceled(err) || errors.Is(ctx.Err(), context.Canceled):
		stageLogger.Info("stage stopped",
			logging.String(logging.FieldEventType, "stage_stopped"),
			logging.Duration("elapsed", elapsed),
		)
		return err
	default:
		logging.ErrorWithContext(stageLogger, "stage failed", "stage_failure",
			logging.Duration("elapsed", elapsed),
			logging.String("error_message", strings.TrimSpace(err.Error())),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect run.log and attempts.log in the project folder"),
		)
		return err
	}
}

// Label turns a stage name like "word_timings" into "Word Timings".
func Label(name string) string {
	parts := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, part := range parts {
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
