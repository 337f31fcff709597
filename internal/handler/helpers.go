package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rallypoint/rallypoint/internal/backup"
)

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeBackupError maps backup package sentinel errors to HTTP responses.
// Caller-input errors surface their full message; decryption failures
// surface only the generic sentinel text so nothing about the blob leaks.
func writeBackupError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, backup.ErrDecryptionFailed):
		writeError(w, http.StatusBadRequest, backup.ErrDecryptionFailed.Error())
	case errors.Is(err, backup.ErrBadRequest),
		errors.Is(err, backup.ErrInvalidArchive),
		errors.Is(err, backup.ErrMalformedArchive),
		errors.Is(err, backup.ErrInvalidEncoding):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, backup.ErrNotFound):
		writeError(w, http.StatusNotFound, backup.ErrNotFound.Error())
	case errors.Is(err, backup.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, backup.ErrStorageUnavailable.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
