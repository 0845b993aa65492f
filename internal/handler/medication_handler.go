package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/medreminder/internal/middleware"
	"github.com/hitoshi/medreminder/internal/model"
)

// MedicationServiceInterface は薬管理ハンドラーが必要とするサービスインターフェース。
type MedicationServiceInterface interface {
	// ListMedications はユーザーの薬一覧を服用時刻の昇順で返す。
	ListMedications(ctx context.Context, userID string) ([]*model.Medication, error)
	// AddMedication は薬を登録し、当日分の服薬記録を即座に生成する。
	AddMedication(ctx context.Context, userID, name, dosage, timeToTake string, now time.Time) (*model.Medication, error)
	// DeleteMedication は所有者が一致する薬を削除する。
	DeleteMedication(ctx context.Context, medicationID, userID string) error
}

// MedicationHandler は薬管理のHTTPハンドラー。
type MedicationHandler struct {
	service MedicationServiceInterface
}

// NewMedicationHandler はMedicationHandlerを生成する。
func NewMedicationHandler(service MedicationServiceInterface) *MedicationHandler {
	return &MedicationHandler{service: service}
}

// addMedicationRequest は薬登録リクエストのボディ。
type addMedicationRequest struct {
	Name       string `json:"name"`
	Dosage     string `json:"dosage"`
	TimeToTake string `json:"time_to_take"`
}

// medicationResponse は薬情報のAPIレスポンス。
type medicationResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Dosage     string `json:"dosage"`
	TimeToTake string `json:"time_to_take"`
}

// ListMedications は薬一覧を取得する。
// GET /api/medications
func (h *MedicationHandler) ListMedications(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	meds, err := h.service.ListMedications(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]medicationResponse, 0, len(meds))
	for _, med := range meds {
		resp = append(resp, toMedicationResponse(med))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// AddMedication は薬を登録する。
// POST /api/medications
func (h *MedicationHandler) AddMedication(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req addMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	med, err := h.service.AddMedication(r.Context(), userID, req.Name, req.Dosage, req.TimeToTake, time.Now())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toMedicationResponse(med))
}

// DeleteMedication は薬を削除する。関連する服薬記録もCASCADE削除される。
// DELETE /api/medications/:id
func (h *MedicationHandler) DeleteMedication(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	medicationID := chi.URLParam(r, "id")

	if err := h.service.DeleteMedication(r.Context(), medicationID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toMedicationResponse はmodel.MedicationからAPIレスポンスに変換する。
func toMedicationResponse(med *model.Medication) medicationResponse {
	return medicationResponse{
		ID:         med.ID,
		Name:       med.Name,
		Dosage:     med.Dosage,
		TimeToTake: med.TimeToTake,
	}
}

// unauthorizedError は認証切れの統一エラーを生成する。
func unauthorizedError() *model.APIError {
	return &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// invalidRequestBodyError はリクエストボディの解析失敗エラーを生成する。
func invalidRequestBodyError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidTime, model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeMedicationNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateUser:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
