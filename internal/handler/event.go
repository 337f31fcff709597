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

type EventHandler struct {
	store  *store.EventStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewEventHandler(es *store.EventStore, hub *websocket.Hub, logger *slog.Logger) *EventHandler {
	return &EventHandler{store: es, hub: hub, logger: logger}
}

func (h *EventHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func validateEvent(e *model.Event) string {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return "title is required"
	}
	if e.OrgID == 0 {
		return "org_id is required"
	}
	if e.Status == "" {
		e.Status = model.EventStatusDraft
	}
	if !model.ValidEventStatus(e.Status) {
		return "status must be draft, published, or archived"
	}
	return ""
}

// canEditEvent: admins edit any event, organizers only events in their org.
func canEditEvent(r *http.Request, orgID int64) bool {
	if auth.IsAdmin(r.Context()) {
		return true
	}
	ac, ok := auth.FromContext(r.Context())
	return ok && ac.Role == model.RoleOrganizer && ac.OrgID == orgID
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !auth.CanOrganize(r.Context()) {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	var e model.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := validateEvent(&e); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if !canEditEvent(r, e.OrgID) {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}
	e.CreatedBy = auth.UserIDPtr(r.Context())

	created, err := h.store.Create(r.Context(), &e)
	if err != nil {
		h.logger.Error("event create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	h.broadcast(websocket.NewMessage("event", "created", created.ID, nil))
	writeJSON(w, http.StatusCreated, created)
}

// List returns published events for guests; organizers and admins also
// see drafts and archived events.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	if !auth.CanOrganize(r.Context()) {
		published := events[:0]
		for _, e := range events {
			if e.Status == model.EventStatusPublished {
				published = append(published, e)
			}
		}
		events = published
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	e, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if e.Status != model.EventStatusPublished && !auth.CanOrganize(r.Context()) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if !canEditEvent(r, existing.OrgID) {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	var e model.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	e.ID = id
	if msg := validateEvent(&e); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if e.OrgID != existing.OrgID && !auth.IsAdmin(r.Context()) {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	if err := h.store.Update(r.Context(), &e); err != nil {
		h.logger.Error("event update failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	updated, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}

	h.broadcast(websocket.NewMessage("event", "updated", id, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if !canEditEvent(r, existing.OrgID) {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.logger.Error("event delete failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	h.broadcast(websocket.NewMessage("event", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// MarkPublishedSeen records that the caller has seen an event's published
// state, clearing it from their notification list.
func (h *EventHandler) MarkPublishedSeen(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())
	if userID == 0 {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.store.MarkPublishedSeen(r.Context(), id, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark seen")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "seen"})
}
