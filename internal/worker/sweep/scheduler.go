package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/medreminder/internal/repository"
)

// MissedDoseSweeper は服用忘れスイープの実行インターフェース。
type MissedDoseSweeper interface {
	// SweepMissed は指定ユーザーの当日分の服用忘れを1回スイープする。
	SweepMissed(ctx context.Context, userID string, now time.Time) ([]string, error)
}

// Scheduler は服用忘れスイープのスケジューリングと並列制御を行う。
// 一定間隔のティッカーでPENDING記録を持つユーザーを取得し、
// semaphoreパターンで最大並列数を制御しながらスイープを実行する。
type Scheduler struct {
	doseRepo       repository.DoseRepository
	sweeper        MissedDoseSweeper
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(
	doseRepo repository.DoseRepository,
	sweeper MissedDoseSweeper,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Scheduler{
		doseRepo:       doseRepo,
		sweeper:        sweeper,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("スイープスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("スイープサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スイープスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("スイープサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は当日PENDING記録を持つ全ユーザーを1回スイープする。
// semaphoreパターンで最大並列数を制御する。ユーザー単位の失敗は
// ログに記録し、他ユーザーのスイープは継続する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	now := time.Now()

	userIDs, err := s.doseRepo.ListUserIDsWithPendingDoses(ctx, now)
	if err != nil {
		return err
	}

	if len(userIDs) == 0 {
		return nil
	}

	s.logger.Info("スイープサイクルを開始します",
		slog.Int("user_count", len(userIDs)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, userID := range userIDs {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(uid string) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if _, err := s.sweeper.SweepMissed(ctx, uid, now); err != nil {
				s.logger.Error("ユーザーのスイープに失敗しました",
					slog.String("user_id", uid),
					slog.String("error", err.Error()),
				)
			}
		}(userID)
	}

	wg.Wait()

	s.logger.Info("スイープサイクルが完了しました",
		slog.Int("user_count", len(userIDs)),
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}
