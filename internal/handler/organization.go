package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rallypoint/rallypoint/internal/auth"
	"github.com/rallypoint/rallypoint/internal/model"
	"github.com/rallypoint/rallypoint/internal/store"
	"github.com/rallypoint/rallypoint/internal/websocket"
)

type OrganizationHandler struct {
	store  *store.OrganizationStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewOrganizationHandler(os *store.OrganizationStore, hub *websocket.Hub, logger *slog.Logger) *OrganizationHandler {
	return &OrganizationHandler{store: os, hub: hub, logger: logger}
}

func (h *OrganizationHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// canEditOrg: admins edit any org, organizers only their own.
func canEditOrg(r *http.Request, orgID int64) bool {
	if auth.IsAdmin(r.Context()) {
		return true
	}
	ac, ok := auth.FromContext(r.Context())
	return ok && ac.Role == model.RoleOrganizer && ac.OrgID == orgID
}

func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !auth.IsAdmin(r.Context()) {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	var org model.Organization
	if err := json.NewDecoder(r.Body).Decode(&org); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	org.Name = strings.TrimSpace(org.Name)
	if org.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := h.store.Create(r.Context(), &org)
	if err != nil {
		h.logger.Error("org create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create organization")
		return
	}

	h.broadcast(websocket.NewMessage("organization", "created", created.ID, nil))
	writeJSON(w, http.StatusCreated, created)
}

func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list organizations")
		return
	}
	if orgs == nil {
		orgs = []model.Organization{}
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	org, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get organization")
		return
	}
	if org == nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if !canEditOrg(r, id) {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get organization")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	var org model.Organization
	if err := json.NewDecoder(r.Body).Decode(&org); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	org.ID = id
	org.Name = strings.TrimSpace(org.Name)
	if org.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.store.Update(r.Context(), &org); err != nil {
		h.logger.Error("org update failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update organization")
		return
	}

	updated, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get organization")
		return
	}

	h.broadcast(websocket.NewMessage("organization", "updated", id, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !auth.IsAdmin(r.Context()) {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get organization")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.logger.Error("org delete failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete organization")
		return
	}

	h.broadcast(websocket.NewMessage("organization", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrganizationHandler) Members(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	members, err := h.store.Members(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.User{}
	}
	writeJSON(w, http.StatusOK, members)
}

type memberRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *OrganizationHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if !canEditOrg(r, id) {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.store.AddMember(r.Context(), id, req.UserID); err != nil {
		h.logger.Error("add member failed", "org", id, "user", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

func (h *OrganizationHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if !canEditOrg(r, id) {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.store.RemoveMember(r.Context(), id, req.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
