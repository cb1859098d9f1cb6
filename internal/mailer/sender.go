// Package mailer はトランザクションメールの送信を提供する。
// 送信プロバイダはmailgun、sendgrid、log（開発用）から設定で選択する。
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// プロバイダ名
const (
	ProviderMailgun  = "mailgun"
	ProviderSendGrid = "sendgrid"
	ProviderLog      = "log"
)

// sendTimeout は1通あたりの送信タイムアウト。
const sendTimeout = 10 * time.Second

// senderName は差出人の表示名。
const senderName = "PanchSetu"

// Message は送信するメール1通を表す。
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// validate は必須項目を確認する。
func (m Message) validate() error {
	if m.To == "" {
		return errors.New("mail recipient is required")
	}
	if m.Subject == "" {
		return errors.New("mail subject is required")
	}
	if m.HTML == "" && m.Text == "" {
		return errors.New("mail body is required")
	}
	return nil
}

// Sender はメール送信のインターフェース。
type Sender interface {
	// Send はメールを送信する。ctxのキャンセルまたは送信タイムアウトで中断する。
	Send(ctx context.Context, msg Message) error
	// Provider はメトリクスやログに使うプロバイダ名を返す。
	Provider() string
}

// Config はメール送信の設定。
type Config struct {
	Provider       string
	From           string
	MailgunDomain  string
	MailgunAPIKey  string
	SendGridAPIKey string
}

// New は設定に応じたSenderを生成する。
func New(cfg Config) (Sender, error) {
	switch cfg.Provider {
	case ProviderMailgun:
		return NewMailgunSender(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.From)
	case ProviderSendGrid:
		return NewSendGridSender(cfg.SendGridAPIKey, cfg.From)
	case ProviderLog, "":
		return NewLogSender(slog.Default()), nil
	default:
		return nil, fmt.Errorf("unsupported mail provider: %q", cfg.Provider)
	}
}

// LogSender は実際には送信せず、宛先と件名のみをログに出力するSender。
// 本文には個人情報が含まれるため出力しない。
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender はLogSenderを生成する。
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send はメール内容の概要をログに出力する。
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "mail not sent (log provider)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// Provider はプロバイダ名を返す。
func (s *LogSender) Provider() string { return ProviderLog }

var _ Sender = (*LogSender)(nil)
