package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/medreminder/internal/model"
)

// PostgresMedicationRepo はPostgreSQLを使用した薬カタログリポジトリ。
type PostgresMedicationRepo struct {
	db *sql.DB
}

// NewPostgresMedicationRepo はPostgresMedicationRepoを生成する。
func NewPostgresMedicationRepo(db *sql.DB) *PostgresMedicationRepo {
	return &PostgresMedicationRepo{db: db}
}

// Create は薬を作成する。
func (r *PostgresMedicationRepo) Create(ctx context.Context, med *model.Medication) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO medications (id, user_id, medicine_name, dosage, time_to_take)
		 VALUES ($1, $2, $3, $4, $5)`,
		med.ID, med.UserID, med.Name, med.Dosage, med.TimeToTake,
	)
	if err != nil {
		return fmt.Errorf("薬の作成に失敗しました: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの薬一覧を服用時刻の昇順で返す。
func (r *PostgresMedicationRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Medication, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, medicine_name, dosage, time_to_take::text
		 FROM medications
		 WHERE user_id = $1
		 ORDER BY time_to_take`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("薬一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var meds []*model.Medication
	for rows.Next() {
		med := &model.Medication{}
		var dosage sql.NullString

		if err := rows.Scan(&med.ID, &med.UserID, &med.Name, &dosage, &med.TimeToTake); err != nil {
			return nil, fmt.Errorf("薬一覧の読み取りに失敗しました: %w", err)
		}

		med.Dosage = nullStringValue(dosage)
		meds = append(meds, med)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("薬一覧の走査に失敗しました: %w", err)
	}

	return meds, nil
}

// DeleteByIDAndUser は所有者が一致する薬を削除し、削除行数を返す。
// 関連するdose_recordsはCASCADE削除される。
func (r *PostgresMedicationRepo) DeleteByIDAndUser(ctx context.Context, id, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM medications WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("薬の削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}

	return deleted, nil
}

// compile-time interface check
var _ MedicationRepository = (*PostgresMedicationRepo)(nil)
