// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"regexp"
	"time"
)

// Medication は1日1回服用する薬を表す。
// 1人のユーザーに属し、削除時は関連するDoseRecordもCASCADE削除される。
type Medication struct {
	ID         string
	UserID     string
	Name       string
	Dosage     string
	TimeToTake string // "HH:MM:SS" 形式の服用時刻
}

// DoseStatus は服薬記録の状態を表す。
type DoseStatus string

const (
	// DoseStatusPending は服用予定（未服用）の状態。
	DoseStatusPending DoseStatus = "PENDING"
	// DoseStatusTaken は服用確認済みの終端状態。
	DoseStatusTaken DoseStatus = "TAKEN"
	// DoseStatusMissed は服用忘れ確定の終端状態。
	DoseStatusMissed DoseStatus = "MISSED"
)

// DoseRecord は「ある薬をある日に服用する」という具体化された予定を表す。
// (medication, scheduled_on) の組ごとに最大1件。
// 遷移はPENDING→TAKENとPENDING→MISSEDのみで、終端状態からは遷移しない。
type DoseRecord struct {
	ID            string
	UserID        string
	MedicationID  string
	ScheduledOn   time.Time // 服用予定日（カレンダー日）
	ScheduledTime string    // "HH:MM:SS" 形式の服用予定時刻
	Status        DoseStatus
	UpdatedAt     time.Time
}

// timeOfDayPattern は HH:MM または HH:MM:SS 形式を受理する。
var timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9](:[0-5][0-9])?$`)

// NormalizeTimeOfDay は時刻文字列を検証し "HH:MM:SS" 形式に正規化する。
// HH:MM 形式は秒を00で補完する。不正な形式はエラーを返す。
func NormalizeTimeOfDay(s string) (string, error) {
	if !timeOfDayPattern.MatchString(s) {
		return "", fmt.Errorf("無効な時刻形式です: %q", s)
	}
	if len(s) == 5 {
		return s + ":00", nil
	}
	return s, nil
}
