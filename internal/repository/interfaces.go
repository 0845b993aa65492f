// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/medreminder/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByName はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.User, error)

	// ExistsByNameOrEmail はユーザー名またはメールアドレスが登録済みかを返す。
	ExistsByNameOrEmail(ctx context.Context, name, email string) (bool, error)

	// CreateWithCloseContact はユーザーと二次連絡先を同一トランザクションで作成する。
	CreateWithCloseContact(ctx context.Context, user *model.User, contact *model.CloseContact) error

	// FindCloseContactByUserID はユーザーの二次連絡先を取得する。
	// 複数行存在する場合も最初の1件のみ返す。見つからない場合はnilを返す。
	FindCloseContactByUserID(ctx context.Context, userID string) (*model.CloseContact, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// MedicationRepository は薬カタログの永続化インターフェース。
type MedicationRepository interface {
	// Create は薬を作成する。
	Create(ctx context.Context, med *model.Medication) error

	// ListByUserID はユーザーの薬一覧を服用時刻の昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Medication, error)

	// DeleteByIDAndUser は所有者が一致する薬を削除し、削除行数を返す。
	// 関連するdose_recordsはCASCADE削除される。
	DeleteByIDAndUser(ctx context.Context, id, userID string) (int64, error)
}

// DoseRepository は服薬記録の永続化インターフェース。
// 状態遷移（PENDING→TAKEN/MISSED）の唯一の書き込み経路。
type DoseRepository interface {
	// ExistsForDay は指定薬・指定日の服薬記録が存在するかを返す。
	ExistsForDay(ctx context.Context, medicationID string, day time.Time) (bool, error)

	// Create は服薬記録を作成する。
	// (medication_id, scheduled_on) のユニーク制約と ON CONFLICT DO NOTHING により、
	// 同日初回アクセスが競合しても1行のみ残る。
	Create(ctx context.Context, dose *model.DoseRecord) error

	// ListScheduleForDay はユーザー・日付の服薬スケジュールを薬情報と結合し、
	// 服用予定時刻の昇順で返す。
	ListScheduleForDay(ctx context.Context, userID string, day time.Time) ([]ScheduleEntry, error)

	// ConfirmDose は (id, userID) が一致しPENDINGの記録をTAKENに更新し、
	// 更新行数を返す。一致しない場合は0を返す（エラーにしない）。
	ConfirmDose(ctx context.Context, doseID, userID string) (int64, error)

	// ClaimAndMarkMissed は指定日のPENDINGかつ scheduled_time < cutoffTime の
	// 記録を単一トランザクション内で FOR UPDATE SKIP LOCKED により排他的に獲得し、
	// MISSEDへ遷移させてコミットする。他トランザクションがロック中の行は
	// スキップされ、次回スイープで再考される。獲得した記録を通知用の
	// 連絡先情報付きで返す。cutoffTimeは "HH:MM:SS" 形式の時刻。
	ClaimAndMarkMissed(ctx context.Context, userID string, day time.Time, cutoffTime string) ([]OverdueDose, error)

	// ListUserIDsWithPendingDoses は指定日にPENDINGの服薬記録を持つ
	// ユーザーIDの一覧を返す。ワーカーの全ユーザースイープで使用する。
	ListUserIDsWithPendingDoses(ctx context.Context, day time.Time) ([]string, error)
}

// ScheduleEntry は服薬記録と薬情報を結合したスケジュール表示用の構造体。
type ScheduleEntry struct {
	DoseID        string
	MedicineName  string
	Dosage        string
	ScheduledTime string // "HH:MM:SS"
	Status        model.DoseStatus
}

// OverdueDose はスイープが獲得した服用忘れ候補と通知に必要な連絡先情報。
// ContactName/ContactPhoneは二次連絡先が存在しない場合は空文字列。
type OverdueDose struct {
	DoseID       string
	MedicineName string
	UserName     string
	UserEmail    string
	UserPhone    string
	ContactName  string
	ContactPhone string
}
