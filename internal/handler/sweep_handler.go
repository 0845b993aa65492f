package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/medreminder/internal/middleware"
)

// SweeperInterface はスイープハンドラーが必要とするインターフェース。
type SweeperInterface interface {
	// SweepMissed は指定ユーザーの服用忘れを検出・通知し、アラート一覧を返す。
	SweepMissed(ctx context.Context, userID string, now time.Time) ([]string, error)
}

// SweepHandler は服用忘れスイープのHTTPハンドラー。
// バックグラウンドの定期スイープとは独立に、クライアントが
// 画面更新のタイミングで即時スイープを要求するために使う。
type SweepHandler struct {
	sweeper SweeperInterface
}

// NewSweepHandler はSweepHandlerを生成する。
func NewSweepHandler(sweeper SweeperInterface) *SweepHandler {
	return &SweepHandler{sweeper: sweeper}
}

// sweepResponse はスイープ結果のAPIレスポンス。
type sweepResponse struct {
	MissedAlerts []string `json:"missed_alerts"`
}

// RunSweep はリクエストしたユーザーの服用忘れスイープを即時実行する。
// 検出された服用忘れごとのアラート文字列を返す。なければ空配列。
// POST /api/sweep
func (h *SweepHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	alerts, err := h.sweeper.SweepMissed(r.Context(), userID, time.Now())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if alerts == nil {
		alerts = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sweepResponse{MissedAlerts: alerts})
}
