// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, medication, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidTime        = "INVALID_TIME"
	ErrCodeMedicationNotFound = "MEDICATION_NOT_FOUND"
	ErrCodeDuplicateUser      = "DUPLICATE_USER"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewInvalidTimeError は無効な服用時刻エラーを生成する。
func NewInvalidTimeError(input string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTime,
		Message:  fmt.Sprintf("無効な服用時刻です: %s", input),
		Category: "validation",
		Action:   "服用時刻は HH:MM または HH:MM:SS 形式で指定してください。",
	}
}

// NewMedicationNotFoundError は薬が見つからない（または権限がない）場合のエラーを生成する。
func NewMedicationNotFoundError(medicationID string) *APIError {
	return &APIError{
		Code:     ErrCodeMedicationNotFound,
		Message:  fmt.Sprintf("指定された薬が見つかりません: %s", medicationID),
		Category: "medication",
		Action:   "薬のIDを確認してください。",
	}
}

// NewDuplicateUserError はユーザー名またはメールアドレスが登録済みの場合のエラーを生成する。
func NewDuplicateUserError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  "このユーザー名またはメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のユーザー名・メールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewValidationFailedError は入力検証エラーを生成する。
func NewValidationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "必須項目をすべて入力してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
