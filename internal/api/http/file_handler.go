package http

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"custody-backend/internal/logger"
	"custody-backend/internal/storage"

	"github.com/gorilla/mux"
)

// FileHandler serves stored objects (asset photos) by key.
type FileHandler struct {
	files storage.Storage
}

func NewFileHandler(files storage.Storage) *FileHandler {
	return &FileHandler{files: files}
}

// Download handles GET requests for download URLs minted by storage.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_argument", "missing key parameter", nil)
		return
	}
	if !storage.MatchesKey(mux.Vars(r)["hash"], key) {
		writeError(w, r, http.StatusNotFound, "not_found", "file not found", nil)
		return
	}

	file, err := h.files.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			writeError(w, r, http.StatusNotFound, "not_found", "file not found", nil)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	defer file.Close()

	contentType := "application/octet-stream"
	switch filepath.Ext(key) {
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	case ".png":
		contentType = "image/png"
	case ".gif":
		contentType = "image/gif"
	case ".webp":
		contentType = "image/webp"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := io.Copy(w, file); err != nil {
		logger.WarnContext(r.Context(), "File download interrupted", "key", key, "error", err)
	}
}
