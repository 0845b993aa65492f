// Package sweep は服用忘れの検出と通知のバックグラウンド処理を提供する。
// スケジューラと検出器（クレーム・遷移・通知）を含む。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/medreminder/internal/metrics"
	"github.com/hitoshi/medreminder/internal/notify"
	"github.com/hitoshi/medreminder/internal/repository"
)

// MissedDoseNotifier は服用忘れ通知の送信インターフェース。
type MissedDoseNotifier interface {
	// NotifyMissedDose は服用忘れ1件の通知を全チャネルへ送信する。
	NotifyMissedDose(ctx context.Context, d notify.MissedDose) (string, []notify.ChannelResult)
}

// Detector は服用忘れの検出と状態遷移を行う。
// 予定時刻から閾値を超えて経過したPENDING記録をFOR UPDATE SKIP LOCKEDで
// 排他的に獲得し、MISSEDへ遷移させた後に通知を送信する。
type Detector struct {
	doseRepo  repository.DoseRepository
	notifier  MissedDoseNotifier
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	threshold time.Duration
}

// NewDetector はDetectorの新しいインスタンスを生成する。
// thresholdが0以下の場合はデフォルト値10分を使用する。
func NewDetector(
	doseRepo repository.DoseRepository,
	notifier MissedDoseNotifier,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	threshold time.Duration,
) *Detector {
	if threshold <= 0 {
		threshold = 10 * time.Minute
	}
	return &Detector{
		doseRepo:  doseRepo,
		notifier:  notifier,
		metrics:   collector,
		logger:    logger,
		threshold: threshold,
	}
}

// SweepMissed は指定ユーザーの当日分の服用忘れを1回スイープする。
// 獲得とMISSED遷移は同一トランザクションで行い、コミット後に通知を送信する。
// 通知の失敗は状態遷移を巻き戻さない（ベストエフォート）。
// 戻り値は利用者向けアラート文字列の一覧。服用忘れがなければ空。
func (d *Detector) SweepMissed(ctx context.Context, userID string, now time.Time) ([]string, error) {
	start := time.Now()

	// 予定時刻が「現在時刻 - 閾値」より厳密に前の記録のみ対象とする
	cutoff := now.Add(-d.threshold).Format("15:04:05")

	overdue, err := d.doseRepo.ClaimAndMarkMissed(ctx, userID, now, cutoff)
	if err != nil {
		return nil, fmt.Errorf("服用忘れの検出に失敗しました: %w", err)
	}

	if len(overdue) == 0 {
		return nil, nil
	}

	// 状態遷移のコミット後に通知を送信する。行ロックを保持したまま
	// 外部サービスを呼ばないため、通知の遅延が他のスイープをブロックしない。
	alerts := make([]string, 0, len(overdue))
	for _, dose := range overdue {
		alert, results := d.notifier.NotifyMissedDose(ctx, notify.MissedDose{
			MedicineName: dose.MedicineName,
			UserName:     dose.UserName,
			UserEmail:    dose.UserEmail,
			UserPhone:    dose.UserPhone,
			ContactName:  dose.ContactName,
			ContactPhone: dose.ContactPhone,
		})
		alerts = append(alerts, alert)

		for _, r := range results {
			d.metrics.RecordNotification(r.Channel, string(r.Outcome))
		}
	}

	d.metrics.RecordSweepClaimed(len(overdue))
	d.metrics.RecordSweepLatency(time.Since(start))

	d.logger.Info("服用忘れスイープが完了しました",
		slog.String("user_id", userID),
		slog.Int("claimed_count", len(overdue)),
		slog.Duration("duration", time.Since(start)),
	)

	return alerts, nil
}
