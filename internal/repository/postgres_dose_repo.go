package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/medreminder/internal/model"
)

// dateLayout はDATE列との比較に使用する日付フォーマット。
const dateLayout = "2006-01-02"

// PostgresDoseRepo はPostgreSQLを使用した服薬記録リポジトリ。
// 服薬記録の状態遷移はすべてこのリポジトリを経由する。
type PostgresDoseRepo struct {
	db *sql.DB
}

// NewPostgresDoseRepo はPostgresDoseRepoを生成する。
func NewPostgresDoseRepo(db *sql.DB) *PostgresDoseRepo {
	return &PostgresDoseRepo{db: db}
}

// ExistsForDay は指定薬・指定日の服薬記録が存在するかを返す。
func (r *PostgresDoseRepo) ExistsForDay(ctx context.Context, medicationID string, day time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM dose_records
			WHERE medication_id = $1 AND scheduled_on = $2::date
		)`,
		medicationID, day.Format(dateLayout),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("服薬記録の存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Create は服薬記録を作成する。
// (medication_id, scheduled_on) のユニーク制約と ON CONFLICT DO NOTHING により、
// 同日初回アクセスのcheck-then-insertが競合しても1行のみ残りエラーにならない。
func (r *PostgresDoseRepo) Create(ctx context.Context, dose *model.DoseRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dose_records (id, user_id, medication_id, scheduled_on, scheduled_time, status)
		 VALUES ($1, $2, $3, $4::date, $5::time, $6)
		 ON CONFLICT (medication_id, scheduled_on) DO NOTHING`,
		dose.ID, dose.UserID, dose.MedicationID,
		dose.ScheduledOn.Format(dateLayout), dose.ScheduledTime, string(dose.Status),
	)
	if err != nil {
		return fmt.Errorf("服薬記録の作成に失敗しました: %w", err)
	}
	return nil
}

// ListScheduleForDay はユーザー・日付の服薬スケジュールを薬情報と結合し、
// 服用予定時刻の昇順で返す。
func (r *PostgresDoseRepo) ListScheduleForDay(ctx context.Context, userID string, day time.Time) ([]ScheduleEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT dr.id, m.medicine_name, m.dosage, dr.scheduled_time::text, dr.status
		 FROM dose_records dr
		 JOIN medications m ON dr.medication_id = m.id
		 WHERE dr.user_id = $1 AND dr.scheduled_on = $2::date
		 ORDER BY dr.scheduled_time`,
		userID, day.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("スケジュールの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []ScheduleEntry
	for rows.Next() {
		var e ScheduleEntry
		var dosage sql.NullString
		var status string

		if err := rows.Scan(&e.DoseID, &e.MedicineName, &dosage, &e.ScheduledTime, &status); err != nil {
			return nil, fmt.Errorf("スケジュールの読み取りに失敗しました: %w", err)
		}

		e.Dosage = nullStringValue(dosage)
		e.Status = model.DoseStatus(status)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スケジュールの走査に失敗しました: %w", err)
	}

	return entries, nil
}

// ConfirmDose は (id, userID) が一致しPENDINGの記録をTAKENに更新し、更新行数を返す。
// 一致しない場合は0を返す（エラーにしない）。TAKEN/MISSEDは終端状態のため
// status = 'PENDING' 条件で状態の巻き戻りを防ぐ。
func (r *PostgresDoseRepo) ConfirmDose(ctx context.Context, doseID, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE dose_records
		 SET status = 'TAKEN', updated_at = now()
		 WHERE id = $1 AND user_id = $2 AND status = 'PENDING'`,
		doseID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("服薬確認の更新に失敗しました: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}

	return updated, nil
}

// ClaimAndMarkMissed は指定日のPENDINGかつ scheduled_time < cutoffTime の記録を
// 単一トランザクション内で FOR UPDATE SKIP LOCKED により排他的に獲得し、
// MISSEDへ遷移させてコミットする。他のスイープや同時実行のconfirm/deleteが
// ロック中の行は結果から除外され、次回スイープで再考される
// （ブロックもデッドロックもしない）。
// 通知に必要なユーザー・二次連絡先情報も同時に取得する。
func (r *PostgresDoseRepo) ClaimAndMarkMissed(ctx context.Context, userID string, day time.Time, cutoffTime string) ([]OverdueDose, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	doses, err := claimOverdue(ctx, tx, userID, day, cutoffTime)
	if err != nil {
		return nil, err
	}

	if len(doses) == 0 {
		return nil, nil
	}

	for _, d := range doses {
		if _, err := tx.ExecContext(ctx,
			`UPDATE dose_records
			 SET status = 'MISSED', updated_at = now()
			 WHERE id = $1 AND status = 'PENDING'`,
			d.DoseID,
		); err != nil {
			return nil, fmt.Errorf("MISSED遷移の更新に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return doses, nil
}

// claimOverdue はトランザクションtx内で服用忘れ候補を行ロック付きで取得する。
func claimOverdue(ctx context.Context, tx *sql.Tx, userID string, day time.Time, cutoffTime string) ([]OverdueDose, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT dr.id, m.medicine_name, u.name, u.email, u.contact,
		        cc.name, cc.contact
		 FROM dose_records dr
		 JOIN medications m ON dr.medication_id = m.id
		 JOIN users u ON dr.user_id = u.id
		 LEFT JOIN LATERAL (
		 	SELECT name, contact FROM close_contacts
		 	WHERE user_id = dr.user_id
		 	ORDER BY id LIMIT 1
		 ) cc ON true
		 WHERE dr.user_id = $1
		   AND dr.scheduled_on = $2::date
		   AND dr.status = 'PENDING'
		   AND dr.scheduled_time < $3::time
		 FOR UPDATE OF dr SKIP LOCKED`,
		userID, day.Format(dateLayout), cutoffTime,
	)
	if err != nil {
		return nil, fmt.Errorf("服用忘れ候補の獲得に失敗しました: %w", err)
	}
	defer rows.Close()

	var doses []OverdueDose
	for rows.Next() {
		var d OverdueDose
		var userEmail, userPhone, ccName, ccPhone sql.NullString

		if err := rows.Scan(
			&d.DoseID, &d.MedicineName, &d.UserName,
			&userEmail, &userPhone, &ccName, &ccPhone,
		); err != nil {
			return nil, fmt.Errorf("服用忘れ候補の読み取りに失敗しました: %w", err)
		}

		d.UserEmail = nullStringValue(userEmail)
		d.UserPhone = nullStringValue(userPhone)
		d.ContactName = nullStringValue(ccName)
		d.ContactPhone = nullStringValue(ccPhone)
		doses = append(doses, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("服用忘れ候補の走査に失敗しました: %w", err)
	}

	return doses, nil
}

// ListUserIDsWithPendingDoses は指定日にPENDINGの服薬記録を持つユーザーIDの一覧を返す。
func (r *PostgresDoseRepo) ListUserIDsWithPendingDoses(ctx context.Context, day time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM dose_records
		 WHERE scheduled_on = $1::date AND status = 'PENDING'`,
		day.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("スイープ対象ユーザーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("スイープ対象ユーザーの読み取りに失敗しました: %w", err)
		}
		userIDs = append(userIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スイープ対象ユーザーの走査に失敗しました: %w", err)
	}

	return userIDs, nil
}

// compile-time interface check
var _ DoseRepository = (*PostgresDoseRepo)(nil)
