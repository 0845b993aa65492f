package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// smsCall はSendSMS呼び出し1件の記録。
type smsCall struct {
	to   string
	body string
}

// recordingSMSSender はSMS送信を記録するテスト用ダブル。
type recordingSMSSender struct {
	mu      sync.Mutex
	calls   []smsCall
	outcome Outcome
	err     error
}

func (s *recordingSMSSender) SendSMS(_ context.Context, to, body string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, smsCall{to: to, body: body})
	return s.outcome, s.err
}

// emailCall はSendEmail呼び出し1件の記録。
type emailCall struct {
	to      string
	subject string
	body    string
}

// recordingEmailSender はメール送信を記録するテスト用ダブル。
type recordingEmailSender struct {
	mu      sync.Mutex
	calls   []emailCall
	outcome Outcome
	err     error
}

func (s *recordingEmailSender) SendEmail(_ context.Context, to, subject, body string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, emailCall{to: to, subject: subject, body: body})
	return s.outcome, s.err
}

// 二次連絡先ありの場合、本人メール・本人SMS・連絡先SMSの3件が送信されることを検証
func TestNotifier_NotifyMissedDose_WithCloseContact(t *testing.T) {
	var buf bytes.Buffer
	sms := &recordingSMSSender{outcome: OutcomeDelivered}
	email := &recordingEmailSender{outcome: OutcomeDelivered}
	n := NewNotifier(sms, email, newTestLogger(&buf))

	alert, results := n.NotifyMissedDose(context.Background(), MissedDose{
		MedicineName: "Aspirin",
		UserName:     "Taro",
		UserEmail:    "taro@example.com",
		UserPhone:    "+818011112222",
		ContactName:  "Hanako",
		ContactPhone: "+818033334444",
	})

	if len(email.calls) != 1 {
		t.Fatalf("email calls = %d, want 1", len(email.calls))
	}
	if email.calls[0].to != "taro@example.com" {
		t.Errorf("email to = %q, want %q", email.calls[0].to, "taro@example.com")
	}
	if email.calls[0].subject != "Medication Reminder: Missed Dose" {
		t.Errorf("email subject = %q", email.calls[0].subject)
	}
	if !strings.Contains(email.calls[0].body, "Aspirin") {
		t.Errorf("email body should mention medicine name: %q", email.calls[0].body)
	}

	if len(sms.calls) != 2 {
		t.Fatalf("sms calls = %d, want 2", len(sms.calls))
	}
	if sms.calls[0].to != "+818011112222" {
		t.Errorf("user sms to = %q, want %q", sms.calls[0].to, "+818011112222")
	}
	if sms.calls[1].to != "+818033334444" {
		t.Errorf("contact sms to = %q, want %q", sms.calls[1].to, "+818033334444")
	}
	if !strings.Contains(sms.calls[1].body, "Taro has missed their Aspirin dose") {
		t.Errorf("contact sms body = %q", sms.calls[1].body)
	}

	want := "ALERT: Missed Aspirin dose. Sending reminders to you and your contact, Hanako."
	if alert != want {
		t.Errorf("alert = %q, want %q", alert, want)
	}

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for _, r := range results {
		if r.Outcome != OutcomeDelivered {
			t.Errorf("outcome = %q, want %q", r.Outcome, OutcomeDelivered)
		}
	}
}

// 二次連絡先なしの場合、本人メール・本人SMSの2件のみ送信されることを検証
func TestNotifier_NotifyMissedDose_WithoutCloseContact(t *testing.T) {
	var buf bytes.Buffer
	sms := &recordingSMSSender{outcome: OutcomeSimulated}
	email := &recordingEmailSender{outcome: OutcomeSimulated}
	n := NewNotifier(sms, email, newTestLogger(&buf))

	alert, results := n.NotifyMissedDose(context.Background(), MissedDose{
		MedicineName: "Aspirin",
		UserName:     "Taro",
		UserEmail:    "taro@example.com",
		UserPhone:    "+818011112222",
	})

	if len(email.calls) != 1 {
		t.Errorf("email calls = %d, want 1", len(email.calls))
	}
	if len(sms.calls) != 1 {
		t.Errorf("sms calls = %d, want 1", len(sms.calls))
	}

	want := "ALERT: Missed Aspirin dose. Sending reminders to you."
	if alert != want {
		t.Errorf("alert = %q, want %q", alert, want)
	}

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
}

// メール送信失敗がSMS送信を妨げないことを検証
func TestNotifier_NotifyMissedDose_EmailFailureDoesNotBlockSMS(t *testing.T) {
	var buf bytes.Buffer
	sms := &recordingSMSSender{outcome: OutcomeDelivered}
	email := &recordingEmailSender{outcome: OutcomeFailed, err: errors.New("smtp down")}
	n := NewNotifier(sms, email, newTestLogger(&buf))

	alert, results := n.NotifyMissedDose(context.Background(), MissedDose{
		MedicineName: "Vitamin D",
		UserName:     "Taro",
		UserEmail:    "taro@example.com",
		UserPhone:    "+818011112222",
	})

	if len(sms.calls) != 1 {
		t.Errorf("sms calls = %d, want 1", len(sms.calls))
	}
	if alert == "" {
		t.Error("alert should be returned even when a channel fails")
	}

	if results[0].Outcome != OutcomeFailed {
		t.Errorf("email outcome = %q, want %q", results[0].Outcome, OutcomeFailed)
	}
	if results[1].Outcome != OutcomeDelivered {
		t.Errorf("sms outcome = %q, want %q", results[1].Outcome, OutcomeDelivered)
	}

	// 失敗はエラーログとして記録される
	if !strings.Contains(buf.String(), "smtp down") {
		t.Error("email failure should be logged")
	}
}
