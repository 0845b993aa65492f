// Package model はドメインモデルを定義する。
package model

import "time"

// User は服薬管理サービスの利用者（患者）を表す。
type User struct {
	ID           string
	Name         string
	Email        string
	Age          int
	Contact      string // SMS通知先の電話番号
	PasswordHash string
	CreatedAt    time.Time
}

// CloseContact はエスカレーション通知の二次連絡先を表す。
// テーブル上は複数行を許容するが、参照時は最大1件のみ使用する。
type CloseContact struct {
	ID      string
	UserID  string
	Name    string
	Contact string
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
