package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/medreminder/internal/model"
	"github.com/hitoshi/medreminder/internal/repository"
)

// mockScheduleService はScheduleServiceInterfaceのテスト用モック。
type mockScheduleService struct {
	getScheduleFn func(ctx context.Context, userID string, now time.Time) ([]repository.ScheduleEntry, error)
	confirmDoseFn func(ctx context.Context, doseID, userID string) (int64, error)
}

func (m *mockScheduleService) GetSchedule(ctx context.Context, userID string, now time.Time) ([]repository.ScheduleEntry, error) {
	if m.getScheduleFn != nil {
		return m.getScheduleFn(ctx, userID, now)
	}
	return nil, nil
}

func (m *mockScheduleService) ConfirmDose(ctx context.Context, doseID, userID string) (int64, error) {
	if m.confirmDoseFn != nil {
		return m.confirmDoseFn(ctx, doseID, userID)
	}
	return 1, nil
}

func TestScheduleHandler_GetSchedule_Success(t *testing.T) {
	service := &mockScheduleService{
		getScheduleFn: func(ctx context.Context, userID string, now time.Time) ([]repository.ScheduleEntry, error) {
			return []repository.ScheduleEntry{
				{DoseID: "dose-1", MedicineName: "Aspirin", Dosage: "100mg", ScheduledTime: "08:00:00", Status: model.DoseStatusTaken},
				{DoseID: "dose-2", MedicineName: "Metformin", Dosage: "500mg", ScheduledTime: "20:00:00", Status: model.DoseStatusPending},
			}, nil
		},
	}
	h := NewScheduleHandler(service)

	w := httptest.NewRecorder()
	h.GetSchedule(w, authedRequest(http.MethodGet, "/api/schedule", ""))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp []scheduleEntryResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("len = %d, want 2", len(resp))
	}
	if resp[0].DoseID != "dose-1" || resp[0].Status != "TAKEN" {
		t.Errorf("unexpected first entry: %+v", resp[0])
	}
	if resp[1].ScheduledTime != "20:00:00" || resp[1].Status != "PENDING" {
		t.Errorf("unexpected second entry: %+v", resp[1])
	}
}

func TestScheduleHandler_GetSchedule_NoAuth_Returns401(t *testing.T) {
	h := NewScheduleHandler(&mockScheduleService{})

	req := httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	w := httptest.NewRecorder()
	h.GetSchedule(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestScheduleHandler_GetSchedule_ServiceError_Returns500(t *testing.T) {
	service := &mockScheduleService{
		getScheduleFn: func(ctx context.Context, userID string, now time.Time) ([]repository.ScheduleEntry, error) {
			return nil, errors.New("db connection lost")
		},
	}
	h := NewScheduleHandler(service)

	w := httptest.NewRecorder()
	h.GetSchedule(w, authedRequest(http.MethodGet, "/api/schedule", ""))

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}

func TestScheduleHandler_ConfirmDose_Success(t *testing.T) {
	var gotDoseID, gotUserID string
	service := &mockScheduleService{
		confirmDoseFn: func(ctx context.Context, doseID, userID string) (int64, error) {
			gotDoseID = doseID
			gotUserID = userID
			return 1, nil
		},
	}

	r := chi.NewRouter()
	r.Post("/api/doses/{id}/confirm", NewScheduleHandler(service).ConfirmDose)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/api/doses/dose-1/confirm", ""))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotDoseID != "dose-1" || gotUserID != "user-test-1" {
		t.Errorf("service called with doseID=%q userID=%q", gotDoseID, gotUserID)
	}

	var resp confirmDoseResponse
	json.NewDecoder(w.Result().Body).Decode(&resp)
	if resp.Updated != 1 {
		t.Errorf("updated = %d, want 1", resp.Updated)
	}
}

// 既にTAKEN/MISSEDの記録の確認は更新0件の成功として返る
func TestScheduleHandler_ConfirmDose_AlreadyResolved_ReturnsZero(t *testing.T) {
	service := &mockScheduleService{
		confirmDoseFn: func(ctx context.Context, doseID, userID string) (int64, error) {
			return 0, nil
		},
	}

	r := chi.NewRouter()
	r.Post("/api/doses/{id}/confirm", NewScheduleHandler(service).ConfirmDose)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/api/doses/dose-1/confirm", ""))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp confirmDoseResponse
	json.NewDecoder(w.Result().Body).Decode(&resp)
	if resp.Updated != 0 {
		t.Errorf("updated = %d, want 0", resp.Updated)
	}
}
