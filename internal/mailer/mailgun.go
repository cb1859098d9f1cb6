package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunSender はMailgun APIでメールを送信するSender。
type MailgunSender struct {
	mg   *mailgun.MailgunImpl
	from string
}

// NewMailgunSender はMailgunSenderを生成する。
func NewMailgunSender(domain, apiKey, from string) (*MailgunSender, error) {
	if domain == "" || apiKey == "" || from == "" {
		return nil, errors.New("invalid mailgun configuration")
	}
	return &MailgunSender{
		mg:   mailgun.NewMailgun(domain, apiKey),
		from: fmt.Sprintf("%s <%s>", senderName, from),
	}, nil
}

// SetAPIBase はAPIの接続先を変更する。EUリージョンやテストで使用する。
func (s *MailgunSender) SetAPIBase(base string) {
	s.mg.SetAPIBase(base)
}

// Send はメールを送信する。
func (s *MailgunSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	m := s.mg.NewMessage(s.from, msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		m.SetHtml(msg.HTML)
	}

	if _, _, err := s.mg.Send(ctx, m); err != nil {
		return fmt.Errorf("mailgun send failed: %w", err)
	}
	return nil
}

// Provider はプロバイダ名を返す。
func (s *MailgunSender) Provider() string { return ProviderMailgun }

var _ Sender = (*MailgunSender)(nil)
