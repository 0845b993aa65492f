// Package schedule は服薬スケジュールのドメインロジックを提供する。
// 日次服薬記録の冪等な生成、スケジュール取得、服薬確認、薬の管理を扱う。
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/medreminder/internal/metrics"
	"github.com/hitoshi/medreminder/internal/model"
	"github.com/hitoshi/medreminder/internal/repository"
)

// Service は服薬スケジュールのサービス層。
type Service struct {
	medRepo  repository.MedicationRepository
	doseRepo repository.DoseRepository
	metrics  metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	medRepo repository.MedicationRepository,
	doseRepo repository.DoseRepository,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		medRepo:  medRepo,
		doseRepo: doseRepo,
		metrics:  collector,
	}
}

// EnsureToday はユーザーの全薬について当日分の服薬記録を生成する。
// 既に存在する薬はスキップし、何度呼んでも1薬1日あたり1件のみ生成される。
// 既存記録の状態（TAKEN/MISSED含む）には一切触れない。
// 同時実行との競合はユニーク制約とON CONFLICT DO NOTHINGが吸収する。
func (s *Service) EnsureToday(ctx context.Context, userID string, now time.Time) error {
	meds, err := s.medRepo.ListByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("薬一覧の取得に失敗しました: %w", err)
	}

	generated := 0
	for _, med := range meds {
		exists, err := s.doseRepo.ExistsForDay(ctx, med.ID, now)
		if err != nil {
			return fmt.Errorf("服薬記録の存在確認に失敗しました: %w", err)
		}
		if exists {
			continue
		}

		dose := &model.DoseRecord{
			ID:            uuid.New().String(),
			UserID:        userID,
			MedicationID:  med.ID,
			ScheduledOn:   now,
			ScheduledTime: med.TimeToTake,
			Status:        model.DoseStatusPending,
		}
		if err := s.doseRepo.Create(ctx, dose); err != nil {
			return fmt.Errorf("服薬記録の生成に失敗しました: %w", err)
		}
		generated++
	}

	if generated > 0 {
		s.metrics.RecordDosesGenerated(generated)
	}

	return nil
}

// GetSchedule は当日の服薬スケジュールを服用予定時刻の昇順で返す。
// 取得前に当日分の服薬記録を生成するため、当日初回アクセスでも
// 全薬のスケジュールが揃った状態で返る。
func (s *Service) GetSchedule(ctx context.Context, userID string, now time.Time) ([]repository.ScheduleEntry, error) {
	if err := s.EnsureToday(ctx, userID, now); err != nil {
		return nil, err
	}

	entries, err := s.doseRepo.ListScheduleForDay(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("スケジュールの取得に失敗しました: %w", err)
	}

	return entries, nil
}

// ConfirmDose は服薬記録をTAKENに更新し、更新行数を返す。
// 記録が存在しない・所有者が異なる・既にPENDING以外の場合は0を返すが
// エラーにはしない（通信リトライによる二重確認を成功として扱う）。
func (s *Service) ConfirmDose(ctx context.Context, doseID, userID string) (int64, error) {
	updated, err := s.doseRepo.ConfirmDose(ctx, doseID, userID)
	if err != nil {
		return 0, fmt.Errorf("服薬確認に失敗しました: %w", err)
	}

	if updated > 0 {
		s.metrics.RecordDoseConfirmed()
	}

	return updated, nil
}

// ListMedications はユーザーの薬一覧を服用時刻の昇順で返す。
func (s *Service) ListMedications(ctx context.Context, userID string) ([]*model.Medication, error) {
	meds, err := s.medRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("薬一覧の取得に失敗しました: %w", err)
	}
	return meds, nil
}

// AddMedication は薬を登録し、当日分の服薬記録を即座に生成する。
// 服用時刻はHH:MMまたはHH:MM:SS形式を受理し、HH:MM:SSに正規化する。
func (s *Service) AddMedication(ctx context.Context, userID, name, dosage, timeToTake string, now time.Time) (*model.Medication, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewValidationFailedError("薬の名前は必須です")
	}

	normalized, err := model.NormalizeTimeOfDay(timeToTake)
	if err != nil {
		return nil, model.NewInvalidTimeError(timeToTake)
	}

	med := &model.Medication{
		ID:         uuid.New().String(),
		UserID:     userID,
		Name:       name,
		Dosage:     dosage,
		TimeToTake: normalized,
	}
	if err := s.medRepo.Create(ctx, med); err != nil {
		return nil, fmt.Errorf("薬の登録に失敗しました: %w", err)
	}

	// 登録した薬が当日のスケジュールに即座に現れるようにする
	if err := s.EnsureToday(ctx, userID, now); err != nil {
		return nil, err
	}

	return med, nil
}

// DeleteMedication は所有者が一致する薬を削除する。
// 関連する服薬記録（履歴含む）はCASCADE削除される。
// 薬が存在しない、または所有者が異なる場合はMEDICATION_NOT_FOUNDエラーを返す。
func (s *Service) DeleteMedication(ctx context.Context, medicationID, userID string) error {
	deleted, err := s.medRepo.DeleteByIDAndUser(ctx, medicationID, userID)
	if err != nil {
		return fmt.Errorf("薬の削除に失敗しました: %w", err)
	}
	if deleted == 0 {
		return model.NewMedicationNotFoundError(medicationID)
	}
	return nil
}
