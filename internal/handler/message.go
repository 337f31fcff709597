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

type MessageHandler struct {
	store  *store.MessageStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewMessageHandler(ms *store.MessageStore, hub *websocket.Hub, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{store: ms, hub: hub, logger: logger}
}

func (h *MessageHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type messageRequest struct {
	Topic       string `json:"topic"`
	MessageType string `json:"message_type"`
	OrgID       *int64 `json:"org_id"`
	EventID     *int64 `json:"event_id"`
}

func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	if req.MessageType == "" {
		req.MessageType = "general"
	}

	msg, err := h.store.Create(r.Context(), req.Topic, req.MessageType, req.OrgID, req.EventID, auth.UserIDPtr(r.Context()))
	if err != nil {
		h.logger.Error("message create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create message")
		return
	}

	h.broadcast(websocket.NewMessage("message", "created", msg.ID, nil))
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("archived") == "true" && auth.CanOrganize(r.Context())

	messages, err := h.store.List(r.Context(), includeArchived)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	msg, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}
	if msg == nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

type archiveRequest struct {
	Archived bool `json:"archived"`
}

func (h *MessageHandler) SetArchived(w http.ResponseWriter, r *http.Request) {
	if !auth.CanOrganize(r.Context()) {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.store.SetArchived(r.Context(), id, req.Archived); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update message")
		return
	}

	h.broadcast(websocket.NewMessage("message", "updated", id, nil))
	writeJSON(w, http.StatusOK, map[string]bool{"archived": req.Archived})
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.logger.Error("message delete failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}

	h.broadcast(websocket.NewMessage("message", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

type replyRequest struct {
	FromType string `json:"from_type"`
	Text     string `json:"text"`
}

func (h *MessageHandler) AddReply(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.FromType == "" {
		req.FromType = "user"
	}

	reply, err := h.store.AddReply(r.Context(), id, req.FromType, req.Text, auth.UserIDPtr(r.Context()))
	if err != nil {
		h.logger.Error("reply create failed", "message", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add reply")
		return
	}

	h.broadcast(websocket.NewMessage("message", "replied", id, nil))
	writeJSON(w, http.StatusCreated, reply)
}

func (h *MessageHandler) Replies(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	replies, err := h.store.Replies(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list replies")
		return
	}
	if replies == nil {
		replies = []model.MessageReply{}
	}
	writeJSON(w, http.StatusOK, replies)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
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

	if err := h.store.MarkRead(r.Context(), id, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
