package http

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"khazna-backend/internal/logger"
	"khazna-backend/internal/service"
	"khazna-backend/internal/storage"
)

// FileHandler serves operation photos to callers allowed to read the operation.
type FileHandler struct {
	ops   service.OperationService
	files storage.Storage
}

func NewFileHandler(ops service.OperationService, files storage.Storage) *FileHandler {
	return &FileHandler{ops: ops, files: files}
}

// operationOf extracts the operation id from operations/<id>/<file>.
func operationOf(key string) (int64, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "operations" {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	return id, err == nil && id > 0
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	key := r.URL.Query().Get("key")
	operationID, ok := operationOf(key)
	if !ok {
		badParam(w, "key")
		return
	}
	if _, err := h.ops.Get(r.Context(), actor, operationID); err != nil {
		writeError(w, r, err)
		return
	}

	file, err := h.files.Open(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
		writeStatus(w, http.StatusNotFound, "file_not_found", "الملف غير موجود")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	contentType := "application/octet-stream"
	switch filepath.Ext(key) {
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	case ".png":
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")

	if _, err := io.Copy(w, file); err != nil {
		logger.Warn("Failed to stream file", "key", key, "error", err)
	}
}
