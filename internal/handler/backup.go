package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rallypoint/rallypoint/internal/auth"
	"github.com/rallypoint/rallypoint/internal/backup"
	"github.com/rallypoint/rallypoint/internal/model"
	"github.com/rallypoint/rallypoint/internal/store"
)

// maxUploadSize caps restore file uploads at 100 MiB.
const maxUploadSize = 100 << 20

type BackupHandler struct {
	manager *backup.Manager
	backups *store.BackupStore
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, bs *store.BackupStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, backups: bs, logger: logger}
}

type createBackupRequest struct {
	Tables []string `json:"tables"`
	Label  string   `json:"label"`
	Type   string   `json:"type"`
}

func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBackupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Type == "" {
		req.Type = model.BackupTypeFull
	}

	result, err := h.manager.CreateBackup(r.Context(), req.Tables, req.Label, req.Type, auth.UserIDPtr(r.Context()))
	if err != nil {
		h.logger.Error("backup create failed", "error", err)
		writeBackupError(w, err, "failed to create backup")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List(r.Context())
	if err != nil {
		h.logger.Error("backup list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, backups)
}

// Download streams the encrypted blob as an attachment. The blob is
// useless without the key the caller received at create time.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	body, record, err := h.manager.Download(r.Context(), id)
	if err != nil {
		writeBackupError(w, err, "failed to download backup")
		return
	}
	defer body.Close()

	name := record.Filename
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if record.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(record.SizeBytes, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("backup download interrupted", "id", id, "error", err)
	}
}

func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.manager.Delete(r.Context(), id); err != nil {
		h.logger.Error("backup delete failed", "id", id, "error", err)
		writeBackupError(w, err, "failed to delete backup")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type restoreRequest struct {
	backupID *int64
	uploaded []byte
	keyHex   string
	mode     string
	tables   []string
	confirm  bool
}

// Restore previews or executes a restore. Without confirmed=true the
// request is a dry run that reports archived vs live row counts.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	req, err := parseRestoreRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := h.manager.Resolve(r.Context(), req.backupID, req.uploaded)
	if err != nil {
		writeBackupError(w, err, "failed to resolve backup")
		return
	}

	if !req.confirm {
		preview, err := h.manager.Preview(r.Context(), raw, req.keyHex, req.tables)
		if err != nil {
			writeBackupError(w, err, "failed to preview restore")
			return
		}
		writeJSON(w, http.StatusOK, preview)
		return
	}

	restored, err := h.manager.Execute(r.Context(), raw, req.keyHex, req.mode, req.tables, true)
	if err != nil {
		h.logger.Error("restore failed", "mode", req.mode, "error", err)
		writeBackupError(w, err, "failed to execute restore")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"restored": restored,
		"mode":     req.mode,
	})
}

// parseRestoreRequest accepts either a JSON body referencing a stored
// backup or a multipart form carrying the encrypted file itself.
func parseRestoreRequest(r *http.Request) (*restoreRequest, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return nil, fmt.Errorf("invalid multipart form")
		}
		req := &restoreRequest{
			keyHex:  r.FormValue("encryption_key"),
			mode:    formValueOr(r, "mode", backup.ModeOverwrite),
			confirm: r.FormValue("confirmed") == "true",
		}
		if tables := r.FormValue("tables"); tables != "" {
			for _, t := range strings.Split(tables, ",") {
				if t = strings.TrimSpace(t); t != "" {
					req.tables = append(req.tables, t)
				}
			}
		}
		if idStr := r.FormValue("backup_id"); idStr != "" {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid backup_id")
			}
			req.backupID = &id
		}
		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
			if err != nil {
				return nil, fmt.Errorf("failed to read uploaded file")
			}
			req.uploaded = data
		}
		return req, nil
	}

	var body struct {
		BackupID      *int64   `json:"backup_id"`
		EncryptionKey string   `json:"encryption_key"`
		Mode          string   `json:"mode"`
		Tables        []string `json:"tables"`
		Confirmed     bool     `json:"confirmed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid JSON")
	}
	if body.Mode == "" {
		body.Mode = backup.ModeOverwrite
	}
	return &restoreRequest{
		backupID: body.BackupID,
		keyHex:   body.EncryptionKey,
		mode:     body.Mode,
		tables:   body.Tables,
		confirm:  body.Confirmed,
	}, nil
}

func formValueOr(r *http.Request, key, fallback string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return fallback
}
