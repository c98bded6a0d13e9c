package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourusername/blog-backend/internal/metrics"
)

// プロバイダー名
const (
	ProviderLog      = "log"
	ProviderSendGrid = "sendgrid"
	ProviderResend   = "resend"
)

// NewSender は provider に応じた Sender を作成します。
func NewSender(provider, apiKey, from string, logger *slog.Logger) (Sender, error) {
	switch provider {
	case "", ProviderLog:
		return NewLogSender(logger), nil
	case ProviderSendGrid:
		return NewSendGridSender(apiKey, from), nil
	case ProviderResend:
		return NewResendSender(apiKey, from), nil
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}

// 送信結果ラベル
const (
	ResultSent     = "sent"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
)

// Observed は送信結果をメトリクスに記録する Sender を返します。
func Observed(next Sender, m *metrics.Metrics) Sender {
	return SenderFunc(func(ctx context.Context, msg Message) error {
		err := next.Send(ctx, msg)
		m.ObserveMail(string(msg.Kind), ResultOf(err))
		return err
	})
}

// ResultOf はエラーを送信結果ラベルに変換します。
func ResultOf(err error) string {
	switch {
	case err == nil:
		return ResultSent
	case errors.Is(err, ErrPermanent):
		return ResultRejected
	default:
		return ResultFailed
	}
}
