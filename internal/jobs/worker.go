package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/yourusername/blog-backend/internal/mail"
)

func (m *Manager) handleMailTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload: %w", asynq.SkipRetry)
	}

	logger := m.logger.With("job_id", payload.JobID, "kind", payload.Message.Kind)

	if err := m.store.MarkRunning(ctx, payload.JobID); err != nil {
		// 状態の記録に失敗しても配信は続ける
		logger.Warn("failed to mark job running", "error", err)
	}

	err := m.deliver.Send(ctx, payload.Message)
	if err == nil {
		if err := m.store.MarkDone(ctx, payload.JobID); err != nil {
			logger.Warn("failed to mark job done", "error", err)
		}
		logger.Info("mail delivered")
		return nil
	}

	permanent := errors.Is(err, mail.ErrPermanent)
	final := permanent || isLastAttempt(ctx)
	code := ErrorCodeFailed
	if permanent {
		code = ErrorCodeRejected
	}
	if markErr := m.store.MarkFailed(ctx, payload.JobID, &ErrorInfo{
		Code:    code,
		Message: err.Error(),
	}, final); markErr != nil {
		logger.Warn("failed to mark job failed", "error", markErr)
	}

	logger.Error("mail delivery failed", "error", err, "final", final)
	if permanent {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// isLastAttempt は現在の試行が最後の再試行かどうかを返します。
func isLastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	limit, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried >= limit
}

// asynqLogger は asynq のログを slog に流します。
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &asynqLogger{logger: logger.With("component", "asynq")}
}

func (l *asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...any) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
