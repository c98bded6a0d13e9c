package mail

import (
	"context"
	"log/slog"
)

// LogSender は送信せずにメール内容をログへ出力します（開発環境用）。
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender は LogSender を作成します。
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send は描画したメールをログに出力します。
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "mail delivered to log",
		slog.String("kind", string(msg.Kind)),
		slog.String("to", msg.To),
		slog.String("subject", rendered.Subject),
		slog.String("body", rendered.Text),
	)
	return nil
}
