package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rallypoint/rallypoint/internal/model"
	"github.com/rallypoint/rallypoint/internal/schedule"
	"github.com/rallypoint/rallypoint/internal/store"
)

type ScheduleHandler struct {
	store  *store.ScheduleStore
	logger *slog.Logger
}

func NewScheduleHandler(ss *store.ScheduleStore, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{store: ss, logger: logger}
}

type scheduleRequest struct {
	Label             string `json:"label"`
	Cron              string `json:"cron"`
	BackupType        string `json:"backup_type"`
	RetentionDays     int    `json:"retention_days"`
	Active            *bool  `json:"active"`
	EncryptionKeyHint string `json:"encryption_key_hint"`
}

func (req *scheduleRequest) validate() string {
	req.Label = strings.TrimSpace(req.Label)
	req.Cron = strings.TrimSpace(req.Cron)
	if req.Label == "" {
		return "label is required"
	}
	if req.Cron == "" {
		return "cron is required"
	}
	if req.BackupType == "" {
		req.BackupType = model.BackupTypeFull
	}
	if !model.ValidBackupType(req.BackupType) {
		return "backup_type must be full or partial"
	}
	if req.RetentionDays <= 0 {
		req.RetentionDays = 30
	}
	return ""
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	sched, err := h.store.Create(r.Context(), req.Label, req.Cron, req.BackupType, req.RetentionDays, req.EncryptionKeyHint)
	if err != nil {
		h.logger.Error("schedule create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create schedule")
		return
	}
	writeJSON(w, http.StatusCreated, sched)
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	if schedules == nil {
		schedules = []model.BackupSchedule{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

// Get returns one schedule, or with ?action=generate-script the shell
// script and crontab entry that drive it from an external scheduler.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	sched, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return
	}
	if sched == nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	if r.URL.Query().Get("action") == "generate-script" {
		desc, err := schedule.Generate(*sched)
		if err != nil {
			h.logger.Error("script generation failed", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to generate script")
			return
		}
		writeJSON(w, http.StatusOK, desc)
		return
	}

	writeJSON(w, http.StatusOK, sched)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	active := existing.Active
	if req.Active != nil {
		active = *req.Active
	}
	if err := h.store.Update(r.Context(), id, req.Label, req.Cron, req.BackupType, req.RetentionDays, active, req.EncryptionKeyHint); err != nil {
		h.logger.Error("schedule update failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update schedule")
		return
	}

	sched, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
