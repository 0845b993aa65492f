package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// twilioAPIBase はTwilio REST APIのベースURL。
const twilioAPIBase = "https://api.twilio.com"

// TwilioSender はTwilio REST APIを使用したSMS送信の実装。
// アカウントSIDまたは認証トークンが未設定の場合はシミュレーションモードで動作し、
// 送信内容をログに出力するだけで外部通信は行わない。
type TwilioSender struct {
	accountSID string
	authToken  string
	fromNumber string
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewTwilioSender はTwilioSenderを生成する。
func NewTwilioSender(accountSID, authToken, fromNumber string, httpClient *http.Client, logger *slog.Logger) *TwilioSender {
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		httpClient: httpClient,
		logger:     logger,
		baseURL:    twilioAPIBase,
	}
}

// simulated は認証情報が揃っていない場合にtrueを返す。
func (s *TwilioSender) simulated() bool {
	return s.accountSID == "" || s.authToken == ""
}

// SendSMS は指定番号にSMSを送信する。
// シミュレーションモードでは送信内容をログに出力してOutcomeSimulatedを返す。
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) (Outcome, error) {
	if to == "" {
		return OutcomeFailed, fmt.Errorf("送信先電話番号が空です")
	}

	if s.simulated() {
		s.logger.Info("SMSシミュレーション",
			slog.String("to", to),
			slog.String("body", body),
		)
		return OutcomeSimulated, nil
	}

	// リクエストボディ構築
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return OutcomeFailed, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("Twilio APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return OutcomeFailed, fmt.Errorf("Twilio APIがステータス %d を返しました", resp.StatusCode)
	}

	// メッセージSIDを取得してログに記録する（失敗しても送信は成功扱い）
	var result struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(respBody, &result); err == nil && result.SID != "" {
		s.logger.Info("SMSを送信しました",
			slog.String("to", to),
			slog.String("message_sid", result.SID),
		)
	} else {
		s.logger.Info("SMSを送信しました", slog.String("to", to))
	}

	return OutcomeDelivered, nil
}

// compile-time interface check
var _ SMSSender = (*TwilioSender)(nil)
