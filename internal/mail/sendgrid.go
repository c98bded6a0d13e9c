package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridSender は SendGrid の v3 API でメールを送信します。
type SendGridSender struct {
	client   sendgridClient
	fromName string
	from     string
}

// NewSendGridSender は SendGridSender を作成します。
func NewSendGridSender(apiKey, from string) *SendGridSender {
	return &SendGridSender{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: "Blog",
		from:     from,
	}
}

// Send はメッセージを描画して SendGrid に送信します。
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}

	email := sgmail.NewSingleEmail(
		sgmail.NewEmail(s.fromName, s.from),
		rendered.Subject,
		sgmail.NewEmail("", msg.To),
		rendered.Text,
		rendered.HTML,
	)

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		err := fmt.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, resp.Body)
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return err
	}
	return nil
}
