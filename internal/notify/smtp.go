package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
)

// SMTPSender はSMTPを使用したメール送信の実装。
// ホスト・ユーザー・パスワードのいずれかが未設定の場合は
// シミュレーションモードで動作する。
type SMTPSender struct {
	host   string
	port   int
	user   string
	pass   string
	logger *slog.Logger
}

// NewSMTPSender はSMTPSenderを生成する。
func NewSMTPSender(host string, port int, user, pass string, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		host:   host,
		port:   port,
		user:   user,
		pass:   pass,
		logger: logger,
	}
}

// simulated は認証情報が揃っていない場合にtrueを返す。
func (s *SMTPSender) simulated() bool {
	return s.host == "" || s.user == "" || s.pass == ""
}

// SendEmail は指定アドレスにメールを送信する。
// シミュレーションモードでは送信内容をログに出力してOutcomeSimulatedを返す。
// STARTTLSはsmtp.SendMailがサーバーの対応状況に応じて自動的に使用する。
func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) (Outcome, error) {
	if to == "" {
		return OutcomeFailed, fmt.Errorf("送信先メールアドレスが空です")
	}

	if s.simulated() {
		s.logger.Info("メールシミュレーション",
			slog.String("to", to),
			slog.String("subject", subject),
			slog.String("body", body),
		)
		return OutcomeSimulated, nil
	}

	if err := ctx.Err(); err != nil {
		return OutcomeFailed, err
	}

	msg := []byte(
		"From: " + s.user + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n" +
			"\r\n" +
			body + "\r\n",
	)

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	if err := smtp.SendMail(addr, auth, s.user, []string{to}, msg); err != nil {
		return OutcomeFailed, fmt.Errorf("メールの送信に失敗しました: %w", err)
	}

	s.logger.Info("メールを送信しました", slog.String("to", to))
	return OutcomeDelivered, nil
}

// compile-time interface check
var _ EmailSender = (*SMTPSender)(nil)
