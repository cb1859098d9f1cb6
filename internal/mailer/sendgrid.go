package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender はSendGrid v3 APIでメールを送信するSender。
type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGridSender はSendGridSenderを生成する。
func NewSendGridSender(apiKey, from string) (*SendGridSender, error) {
	if apiKey == "" || from == "" {
		return nil, errors.New("invalid sendgrid configuration")
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(senderName, from),
	}, nil
}

// SetBaseURL はAPIの送信エンドポイントを変更する。テストで使用する。
func (s *SendGridSender) SetBaseURL(url string) {
	s.client.BaseURL = url
}

// Send はメールを送信する。SendGridは受理時に202を返す。
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(s.from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid send failed: status %d", resp.StatusCode)
	}
	return nil
}

// Provider はプロバイダ名を返す。
func (s *SendGridSender) Provider() string { return ProviderSendGrid }

var _ Sender = (*SendGridSender)(nil)
