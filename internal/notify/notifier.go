// Package notify は服用忘れ通知の送信機能を提供する。
// SMS（Twilio）とメール（SMTP）の両チャネルを扱い、認証情報が
// 未設定の場合はシミュレーションモードで動作する。
package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Outcome は通知1件の送信結果。
type Outcome string

const (
	// OutcomeDelivered は外部サービスへの送信に成功したことを示す。
	OutcomeDelivered Outcome = "delivered"
	// OutcomeSimulated は認証情報未設定のためログ出力のみ行ったことを示す。
	OutcomeSimulated Outcome = "simulated"
	// OutcomeFailed は送信を試みて失敗したことを示す。
	OutcomeFailed Outcome = "failed"
)

// SMSSender はSMS送信のインターフェース。
type SMSSender interface {
	// SendSMS は指定番号にSMSを送信し、送信結果を返す。
	SendSMS(ctx context.Context, to, body string) (Outcome, error)
}

// EmailSender はメール送信のインターフェース。
type EmailSender interface {
	// SendEmail は指定アドレスにメールを送信し、送信結果を返す。
	SendEmail(ctx context.Context, to, subject, body string) (Outcome, error)
}

// MissedDose は服用忘れ1件の通知に必要な情報。
// ContactName/ContactPhoneは二次連絡先が存在しない場合は空文字列。
type MissedDose struct {
	MedicineName string
	UserName     string
	UserEmail    string
	UserPhone    string
	ContactName  string
	ContactPhone string
}

// ChannelResult は通知チャネル1件の送信結果。
type ChannelResult struct {
	Channel string // "email" または "sms"
	Outcome Outcome
}

// Notifier は服用忘れ通知の送信を調整する。
// 本人にはメールとSMS、二次連絡先にはSMSのみを送信する。
// 送信失敗は記録するが呼び出し元へはエラーを返さない（ベストエフォート）。
type Notifier struct {
	sms    SMSSender
	email  EmailSender
	logger *slog.Logger
}

// NewNotifier はNotifierを生成する。
func NewNotifier(sms SMSSender, email EmailSender, logger *slog.Logger) *Notifier {
	return &Notifier{
		sms:    sms,
		email:  email,
		logger: logger,
	}
}

// NotifyMissedDose は服用忘れ1件の通知を全チャネルへ送信する。
// 各チャネルは独立して試行され、片方の失敗が他方を妨げない。
// 戻り値は利用者向けアラート文字列と、チャネルごとの送信結果。
func (n *Notifier) NotifyMissedDose(ctx context.Context, d MissedDose) (string, []ChannelResult) {
	var results []ChannelResult

	// 本人へのメール通知
	subject := "Medication Reminder: Missed Dose"
	emailBody := fmt.Sprintf(
		"Hi %s,\n\nThis is a reminder that you missed your dose for %s.\n\nPlease take it as soon as possible.\n\n- MedReminder App",
		d.UserName, d.MedicineName,
	)
	outcome, err := n.email.SendEmail(ctx, d.UserEmail, subject, emailBody)
	if err != nil {
		n.logger.Error("本人へのメール通知に失敗しました",
			slog.String("user_name", d.UserName),
			slog.String("medicine_name", d.MedicineName),
			slog.String("error", err.Error()),
		)
	}
	results = append(results, ChannelResult{Channel: "email", Outcome: outcome})

	// 本人へのSMS通知
	userSMSBody := fmt.Sprintf(
		"MedReminder Alert: Hi %s, it looks like you missed your %s dose. Please take it as soon as possible.",
		d.UserName, d.MedicineName,
	)
	outcome, err = n.sms.SendSMS(ctx, d.UserPhone, userSMSBody)
	if err != nil {
		n.logger.Error("本人へのSMS通知に失敗しました",
			slog.String("user_name", d.UserName),
			slog.String("medicine_name", d.MedicineName),
			slog.String("error", err.Error()),
		)
	}
	results = append(results, ChannelResult{Channel: "sms", Outcome: outcome})

	// 二次連絡先へのSMS通知（メールアドレスは保持していないためSMSのみ）
	if d.ContactPhone != "" {
		contactSMSBody := fmt.Sprintf(
			"MedReminder Alert: %s has missed their %s dose. Please check on them.",
			d.UserName, d.MedicineName,
		)
		outcome, err = n.sms.SendSMS(ctx, d.ContactPhone, contactSMSBody)
		if err != nil {
			n.logger.Error("二次連絡先へのSMS通知に失敗しました",
				slog.String("contact_name", d.ContactName),
				slog.String("medicine_name", d.MedicineName),
				slog.String("error", err.Error()),
			)
		}
		results = append(results, ChannelResult{Channel: "sms", Outcome: outcome})
	}

	return alertMessage(d), results
}

// alertMessage は服用忘れ1件の利用者向けアラート文字列を組み立てる。
// 二次連絡先の有無で文面が変わる。
func alertMessage(d MissedDose) string {
	if d.ContactPhone != "" {
		return fmt.Sprintf("ALERT: Missed %s dose. Sending reminders to you and your contact, %s.", d.MedicineName, d.ContactName)
	}
	return fmt.Sprintf("ALERT: Missed %s dose. Sending reminders to you.", d.MedicineName)
}
