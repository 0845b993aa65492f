package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/medreminder/internal/middleware"
	"github.com/hitoshi/medreminder/internal/repository"
)

// ScheduleServiceInterface はスケジュールハンドラーが必要とするサービスインターフェース。
type ScheduleServiceInterface interface {
	// GetSchedule は当日分を生成した上でスケジュール一覧を返す。
	GetSchedule(ctx context.Context, userID string, now time.Time) ([]repository.ScheduleEntry, error)
	// ConfirmDose は服薬記録をTAKENに更新し、更新行数を返す。
	ConfirmDose(ctx context.Context, doseID, userID string) (int64, error)
}

// ScheduleHandler は服薬スケジュールのHTTPハンドラー。
type ScheduleHandler struct {
	service ScheduleServiceInterface
}

// NewScheduleHandler はScheduleHandlerを生成する。
func NewScheduleHandler(service ScheduleServiceInterface) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// scheduleEntryResponse はスケジュール1件のAPIレスポンス。
type scheduleEntryResponse struct {
	DoseID        string `json:"dose_id"`
	MedicineName  string `json:"medicine_name"`
	Dosage        string `json:"dosage"`
	ScheduledTime string `json:"scheduled_time"`
	Status        string `json:"status"`
}

// confirmDoseResponse は服薬確認のAPIレスポンス。
type confirmDoseResponse struct {
	Updated int64 `json:"updated"`
}

// GetSchedule は当日の服薬スケジュールを服用予定時刻の昇順で返す。
// 当日分の服薬記録が未生成であればこの呼び出しの中で生成される。
// GET /api/schedule
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	entries, err := h.service.GetSchedule(r.Context(), userID, time.Now())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]scheduleEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, scheduleEntryResponse{
			DoseID:        e.DoseID,
			MedicineName:  e.MedicineName,
			Dosage:        e.Dosage,
			ScheduledTime: e.ScheduledTime,
			Status:        string(e.Status),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ConfirmDose は服薬記録をTAKENに更新する。
// 既に確認済み・期限切れでMISSEDに遷移済みの場合はupdated=0で成功を返す。
// POST /api/doses/:id/confirm
func (h *ScheduleHandler) ConfirmDose(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	doseID := chi.URLParam(r, "id")

	updated, err := h.service.ConfirmDose(r.Context(), doseID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(confirmDoseResponse{Updated: updated})
}
